package relay

import (
	"encoding/json"
)

// ErrorModel is a zero-argument factory producing a fresh value the 4xx error
// body is decoded into. The factory must return a pointer (e.g.
// func() any { return &APIErrorBody{} }). A nil factory disables model
// decoding.
type ErrorModel func() any

// Classify maps a response onto the pipeline's error taxonomy.
//
//   - 2xx: success (nil).
//   - 4xx: *ClientError; the body is decoded against errorModel best-effort,
//     Model stays nil when decoding fails.
//   - 5xx: *ServerError; the body is never decoded.
//   - everything else: *UnknownError. This includes 3xx — the transport
//     follows redirects itself, so a 3xx reaching classification means
//     redirect handling was exhausted and the response is not actionable.
func Classify(resp *Response, errorModel ErrorModel) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{
			StatusCode: resp.StatusCode,
			Model:      decodeErrorModel(resp.Body, errorModel),
			Body:       resp.Body,
		}

	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		return &ServerError{
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
		}

	default:
		return &UnknownError{
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
		}
	}
}

func decodeErrorModel(body []byte, errorModel ErrorModel) any {
	if errorModel == nil || len(body) == 0 {
		return nil
	}

	model := errorModel()

	err := json.Unmarshal(body, model)
	if err != nil {
		return nil
	}

	return model
}
