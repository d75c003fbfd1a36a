package util

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"
)

func TestSniffMimeType(t *testing.T) {
	var pngBuf bytes.Buffer
	png.Encode(&pngBuf, image.NewRGBA(image.Rect(0, 0, 4, 4)))
	original := pngBuf.Bytes()

	mimeType, r, err := SniffMimeType(bytes.NewReader(original), AvatarMimeTypes)
	if err != nil || mimeType != MimePNG {
		t.Fatalf("png: %q, %v", mimeType, err)
	}
	got, _ := io.ReadAll(r)
	if !bytes.Equal(got, original) {
		t.Fatalf("reader lost bytes: got %d want %d", len(got), len(original))
	}

	_, _, err = SniffMimeType(strings.NewReader("#!/bin/sh\necho hi"), AvatarMimeTypes)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("text err = %v", err)
	}

	if ext := ExtensionFor("image/jpeg", "me.JPEG"); ext != ".jpg" {
		t.Fatalf("ext = %q", ext)
	}
}
