package util

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatMoney chuyển đổi số tiền từ int64 sang chuỗi định dạng VND.
// Ví dụ: 1000000 -> "1.000.000 ₫".
func FormatMoney(amount int64) string {
	// humanize dùng dấu phẩy, VND dùng dấu chấm
	return strings.ReplaceAll(humanize.Comma(amount), ",", ".") + " ₫"
}

// FormatVietnamTime formats t in the Asia/Ho_Chi_Minh zone, e.g. "15:04 02/01/2006".
func FormatVietnamTime(t time.Time) string {
	return t.In(VietnamLocation()).Format("15:04 02/01/2006")
}

// VietnamLocation returns GMT+7, falling back to a fixed zone when tzdata is missing.
func VietnamLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		return time.FixedZone("Asia/Ho_Chi_Minh", 7*60*60)
	}
	return loc
}
