package interceptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"strconv"
)

// RequestPayload flattens the data a request carries into string fields: its query parameters,
// then the fields of its body. A body is decoded as a JSON object when it has a JSON content
// type or looks like one, and as form data otherwise. Body fields win over query parameters
// of the same name, and only the first value of a repeated field is kept.
func RequestPayload(req Request) map[string]string {
	payload := make(map[string]string)
	if req.URL != nil {
		addValues(payload, req.URL.Query())
	}
	body := bytes.TrimSpace(req.Body)
	if len(body) == 0 {
		return payload
	}
	mediaType, _, _ := mime.ParseMediaType(req.ContentType)
	if mediaType == "application/json" || (mediaType == "" && body[0] == '{') {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err == nil {
			for k, raw := range fields {
				payload[k] = jsonFieldString(raw)
			}
			return payload
		}
	}
	if values, err := url.ParseQuery(string(body)); err == nil {
		addValues(payload, values)
	}
	return payload
}

func addValues(payload map[string]string, values url.Values) {
	for k, vs := range values {
		if len(vs) > 0 {
			payload[k] = vs[0]
		}
	}
}

// jsonFieldString renders a JSON value the way it would appear in a query string: strings
// without quotes, numbers and booleans as written, anything else as compact JSON.
func jsonFieldString(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case nil:
		return ""
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return fmt.Sprint(value)
		}
		return buf.String()
	}
}
