package backend

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// Image is an uploaded picture.
type Image struct {
	Filename string
	Data     []byte
}

// LoadImage reads an image file from disk.
func LoadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("reading image: %w", err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("image %s is empty", path)
	}
	return Image{Filename: filepath.Base(path), Data: data}, nil
}

// ContentType guesses the MIME type from the file extension, then from the
// content. The restyle backend rejects anything that is not image/*.
func (img Image) ContentType() string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(img.Filename))); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return http.DetectContentType(img.Data)
}

// multipartForm buffers a multipart/form-data body.
type multipartForm struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

func newMultipartForm() *multipartForm {
	f := &multipartForm{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

func (f *multipartForm) field(name, value string) {
	if f.err != nil {
		return
	}
	f.err = f.w.WriteField(name, value)
}

func (f *multipartForm) file(name string, img Image) {
	if f.err != nil {
		return
	}

	filename := img.Filename
	if filename == "" {
		filename = "image"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, name, filename))
	h.Set("Content-Type", img.ContentType())

	part, err := f.w.CreatePart(h)
	if err != nil {
		f.err = err
		return
	}
	_, f.err = part.Write(img.Data)
}

// close finishes the body and reports the first write error.
func (f *multipartForm) close() error {
	if f.err != nil {
		return fmt.Errorf("building form: %w", f.err)
	}
	if err := f.w.Close(); err != nil {
		return fmt.Errorf("building form: %w", err)
	}
	return nil
}

func (f *multipartForm) body() io.Reader {
	return bytes.NewReader(f.buf.Bytes())
}

func (f *multipartForm) contentType() string {
	return f.w.FormDataContentType()
}
