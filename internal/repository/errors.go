package repository

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/lib/pq"
)

// ErrScoreNotFound 评分记录不存在
var ErrScoreNotFound = errors.New("score record not found")

// IsConnectivityError 是否为连接级错误（连接断开、网络错误、服务器关闭）
// 这类错误之后的任何存储操作都不会成功，批处理应整体中止
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 08: connection exception；57P01-57P03: admin/crash shutdown, cannot connect now
		switch pqErr.Code {
		case "57P01", "57P02", "57P03":
			return true
		}
		return pqErr.Code.Class() == "08"
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
