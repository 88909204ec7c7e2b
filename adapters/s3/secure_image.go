package s3

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// SecureMIMETypesExtension 定義了允許上傳的安全圖片類型及其對應的副檔名
var SecureMIMETypesExtension = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/bmp":  "bmp",
	"image/tiff": "tiff",
	"image/webp": "webp",
}

// sniffLen 是 http.DetectContentType 最多會檢查的位元組數
const sniffLen = 512

// CheckSecureImageAndGetExtension 檢查給定的 MIME 類型是否為允許的圖片類型，並返回對應的副檔名
func CheckSecureImageAndGetExtension(mimeType string) (bool, string) {
	ext, ok := SecureMIMETypesExtension[mimeType]
	return ok, ext
}

// DetectPayloadMIMEType 解碼 base64 圖片（可帶 data URL 前綴）的開頭並判斷實際的 MIME 類型，
// 無法解碼時返回空字串。宣告的 data URL 類型不被採信。
func DetectPayloadMIMEType(payload string) string {
	if strings.HasPrefix(payload, "data:") {
		_, data, ok := strings.Cut(payload, ",")
		if !ok {
			return ""
		}
		payload = data
	}
	// 只解碼足夠判斷類型的長度，base64 每 4 個字元對應 3 個位元組
	head := payload[:min(len(payload), (sniffLen/3+1)*4)]
	decoded, err := base64.StdEncoding.DecodeString(head)
	if err != nil {
		// 截斷後可能缺少 padding，改以 RawStdEncoding 解碼完整的 4 字元區塊
		decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(head[:len(head)/4*4], "="))
		if err != nil || len(decoded) == 0 {
			return ""
		}
	}
	return http.DetectContentType(decoded)
}

// CheckSecurePayload 檢查 base64 圖片是否為允許的圖片類型
func CheckSecurePayload(payload string) (bool, string) {
	mimeType := DetectPayloadMIMEType(payload)
	ok, _ := CheckSecureImageAndGetExtension(mimeType)
	return ok, mimeType
}
