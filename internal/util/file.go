package util

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// AvatarMimeTypes 头像允许的图片类型
var AvatarMimeTypes = []string{MimePNG, "image/jpeg", "image/webp", "image/gif"}

// SniffMimeType 读取前 512 字节校验 MIME 类型，返回可从头重新读取的 reader
func SniffMimeType(reader io.Reader, allowedTypes []string) (string, io.Reader, error) {
	buffer := make([]byte, 512)
	n, err := io.ReadFull(reader, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	head := buffer[:n]

	mimeType := http.DetectContentType(head)
	rest := io.MultiReader(bytes.NewReader(head), reader)

	for _, allowed := range allowedTypes {
		if strings.HasPrefix(mimeType, allowed) {
			return mimeType, rest, nil
		}
	}
	return mimeType, nil, NewValidation("unsupported file type: %s", mimeType)
}

// ExtensionFor MIME 对应的文件扩展名，未知时沿用原文件名的扩展名
func ExtensionFor(mimeType, filename string) string {
	switch mimeType {
	case MimePNG:
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return strings.ToLower(filepath.Ext(filename))
}
