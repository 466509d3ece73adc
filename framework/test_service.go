package framework

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// AwaitService polls url until it answers with a non-error status, printing progress to
// output. It is used before a run to make sure the application under test is being served.
func AwaitService(url string, timeout time.Duration, output io.Writer) error {
	fmt.Fprintf(output, "Connecting to application at %s", url)

	deadline := time.Now().Add(timeout)
	for {
		fmt.Fprintf(output, ".")
		resp, err := http.DefaultClient.Get(url)
		if err == nil {
			if resp.Body != nil {
				_ = resp.Body.Close()
			}
			fmt.Fprintln(output)
			if resp.StatusCode >= 400 {
				return fmt.Errorf("application returned status code %d", resp.StatusCode)
			}
			return nil
		}
		if !time.Now().Before(deadline) {
			fmt.Fprintln(output)
			return fmt.Errorf("timed out, result of last query was: %w", err)
		}
		time.Sleep(time.Millisecond * 100)
	}
}
