package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dutchcoders/go-clamd"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"recipehub/internal/errcode"
	"recipehub/internal/storage"
)

const (
	imageFormField      = "image"
	defaultMaxImageSize = 10 << 20
)

// allowedImageTypes 只放行位图格式，不接受 SVG。
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/avif": true,
}

// imageStorage 是图片托管能力，*storage.Client 满足该接口。
type imageStorage interface {
	UploadImage(ctx context.Context, reader io.Reader, size int64, contentType string) (storage.Image, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

var _ imageStorage = (*storage.Client)(nil)

// imageUploader 接收 multipart 中的图片，校验类型与大小，可选地做病毒扫描后写入对象存储。
type imageUploader struct {
	storage   imageStorage
	logger    *slog.Logger
	clamdAddr string
	maxBytes  int64
}

func newImageUploader(storageClient imageStorage, logger *slog.Logger, clamdAddr string) *imageUploader {
	return &imageUploader{
		storage:   storageClient,
		logger:    logger,
		clamdAddr: strings.TrimSpace(clamdAddr),
		maxBytes:  defaultMaxImageSize,
	}
}

// receive 返回上传后的图片；请求中没有图片时返回 nil。
func (u *imageUploader) receive(c *gin.Context) (*storage.Image, error) {
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return nil, nil
	}
	file, err := c.FormFile(imageFormField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errcode.Validation("invalid image upload")
	}
	if file.Size > u.maxBytes {
		return nil, errcode.Validation(fmt.Sprintf("Image must be at most %dMB", u.maxBytes>>20))
	}

	contentType, err := sniffContentType(file)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if !allowedImageTypes[contentType] {
		return nil, errcode.Validation("Only image files are allowed")
	}

	if u.clamdAddr != "" {
		if err := u.scan(file); err != nil {
			return nil, err
		}
	}
	if u.storage == nil {
		return nil, errors.New("image storage is not configured")
	}

	reader, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer reader.Close()

	image, err := u.storage.UploadImage(c.Request.Context(), reader, file.Size, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	return &image, nil
}

func (u *imageUploader) scan(file *multipart.FileHeader) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("open image for scan: %w", err)
	}
	defer reader.Close()

	abortChan := make(chan bool)
	defer close(abortChan)
	scanChan, err := clamd.NewClamd(u.clamdAddr).ScanStream(reader, abortChan)
	if err != nil {
		return fmt.Errorf("scan image: %w", err)
	}
	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			u.logger.Warn("rejected infected upload", slog.String("status", result.Status), slog.String("description", result.Description))
			return errcode.Validation("malicious file detected")
		}
	}
	return nil
}

// sniffContentType 按文件内容识别类型，不信任客户端声明的 Content-Type。
func sniffContentType(file *multipart.FileHeader) (string, error) {
	reader, err := file.Open()
	if err != nil {
		return "", err
	}
	defer reader.Close()

	detected, err := mimetype.DetectReader(reader)
	if err != nil {
		return "", err
	}
	return detected.String(), nil
}
