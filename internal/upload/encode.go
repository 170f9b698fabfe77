package upload

import (
	"encoding/base64"
	"errors"
	"strings"
)

const defaultMIMEType = "application/octet-stream"

var mimeTypes = map[string]string{
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"txt":  "text/plain",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
}

var ErrInvalidDataURL = errors.New("invalid data url")

// MIMEType maps an extension (without dot) to its content type.
func MIMEType(ext string) string {
	if m, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return m
	}
	return defaultMIMEType
}

// MIMETypeFor resolves the content type from a filename.
func MIMETypeFor(filename string) string {
	ext, ok := Extension(filename)
	if !ok {
		return defaultMIMEType
	}
	return MIMEType(ext)
}

func EncodeDataURL(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = defaultMIMEType
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL reverses EncodeDataURL. Only base64 payloads are supported.
func DecodeDataURL(s string) (data []byte, mimeType string, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrInvalidDataURL
	}
	mimeType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, "", ErrInvalidDataURL
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", err
	}
	return data, mimeType, nil
}
