package ballot

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/andresmejia3/votecam/internal/capture"
	"github.com/andresmejia3/votecam/internal/types"
)

// ImageField is the multipart part carrying the JPEG.
const ImageField = "image"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// NewForm builds a two-part multipart body: the captured image and one text field.
// It returns the body and the Content-Type header (with boundary) to send it with.
func NewForm(c *types.Capture, field, value string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	// CreateFormFile would label the part application/octet-stream
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(ImageField), quoteEscaper.Replace(capture.Filename)))
	h.Set("Content-Type", capture.MIMEType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(c.Data); err != nil {
		return nil, "", err
	}

	if err := mw.WriteField(field, value); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body, mw.FormDataContentType(), nil
}
