package storage

import (
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
)

// IsNoSuchKey 判断删除/读取失败是否只是对象已不存在；释放图片时这类错误视为成功。
func IsNoSuchKey(err error) bool {
	if err == nil {
		return false
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NotFound":
		return true
	case "":
		// 非 S3 错误体（例如经过代理），退回到文本匹配。
		lower := strings.ToLower(err.Error())
		return strings.Contains(lower, "nosuchkey") || strings.Contains(lower, "specified key does not exist")
	}
	return resp.StatusCode == http.StatusNotFound && resp.Code != "NoSuchBucket"
}
