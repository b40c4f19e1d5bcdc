package api

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/annotator/internal/core/bz"
	"github.com/gowvp/annotator/pkg/mask"
	"github.com/ixugo/goddd/pkg/reason"
)

// toReason 领域错误转为 reason 错误，其余原样返回
func toReason(err error) error {
	if err == nil {
		return nil
	}
	var (
		dimErr *mask.InvalidDimensionsError
		decErr *mask.DecodeError
	)
	switch {
	case errors.Is(err, bz.ErrNotFound):
		return reason.ErrNotFound.SetMsg(err.Error())
	case errors.Is(err, bz.ErrPrecondition), errors.Is(err, bz.ErrStale):
		return reason.ErrBadRequest.SetMsg(err.Error())
	case errors.As(err, &dimErr), errors.As(err, &decErr):
		return reason.ErrBadRequest.SetMsg(err.Error())
	case errors.Is(err, bz.ErrExternalService):
		return reason.ErrServer.SetMsg(err.Error())
	}
	return err
}

func paramID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, reason.ErrBadRequest.Withf("invalid %s[%s]", name, c.Param(name))
	}
	return id, nil
}
