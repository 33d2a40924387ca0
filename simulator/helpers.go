package simulator

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteXML writes an XML response with the given status code, prefixed
// with the XML declaration the storage data plane emits.
func WriteXML(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	io.WriteString(w, xml.Header)
	xml.NewEncoder(w).Encode(v)
}

// ReadJSON reads and decodes a JSON request body into the given value.
func ReadJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

// PathParam extracts a path parameter from the request using Go 1.22+ routing.
func PathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// AzureError writes an ARM-style JSON error response.
//
// ARM error format:
//
//	{"error": {"code": "ResourceNotFound", "message": "details"}}
func AzureError(w http.ResponseWriter, code string, message string, statusCode int) {
	w.Header().Set("x-ms-error-code", code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// AzureErrorf writes an ARM-style error with a formatted message.
func AzureErrorf(w http.ResponseWriter, code string, statusCode int, format string, args ...any) {
	AzureError(w, code, fmt.Sprintf(format, args...), statusCode)
}

// blobError writes a storage data-plane error. The SDK reads the error
// code from the x-ms-error-code header.
func blobError(w http.ResponseWriter, code string, message string, statusCode int) {
	w.Header().Set("x-ms-error-code", code)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, `%s<Error><Code>%s</Code><Message>%s</Message></Error>`, xml.Header, code, message)
}
