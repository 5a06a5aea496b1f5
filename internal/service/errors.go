package service

import "errors"

var (
	ErrNotFound         = errors.New("用户不存在")
	ErrUnknownUser      = errors.New("目标用户不存在")
	ErrValidation       = errors.New("参数错误")
	ErrStoreUnavailable = errors.New("存储不可用")
)

// 对外稳定的错误类型
const (
	KindNotFound         = "not_found"
	KindUnknownUser      = "unknown_user"
	KindValidation       = "validation_error"
	KindStoreUnavailable = "store_unavailable"
	KindInternal         = "internal"
)

// KindOf 返回错误对应的类型
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnknownUser):
		return KindUnknownUser
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	default:
		return KindInternal
	}
}
