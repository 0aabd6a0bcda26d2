package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// secretKey 存储服务器在启动时生成的32字节密钥。
var secretKey []byte

// TicketPayload 定义了发现凭据中需要被签名的数据。
// 当扫描器让某个宝藏进入可确认状态时签发，确认请求必须原样带回，
// 防止客户端伪造对从未被提供过的宝藏的确认。
type TicketPayload struct {
	TicketID string `json:"t"`
	CacheID  string `json:"c"`
	UserID   string `json:"u"`
}

// GenerateSecretKey 生成一个密码学安全的32字节随机密钥。
func GenerateSecretKey() {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	if err != nil {
		panic("无法生成安全的密钥: " + err.Error())
	}
	secretKey = key
	fmt.Println("HMAC密钥已成功生成。")
}

// GenerateTicketSignature 为一个给定的TicketPayload生成HMAC签名。
// 返回签名的Base64编码字符串。
func GenerateTicketSignature(payload TicketPayload) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", errors.New("无法序列化Ticket payload")
	}

	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payloadBytes)
	signature := mac.Sum(nil)

	return base64.RawURLEncoding.EncodeToString(signature), nil
}

// ValidateTicketSignature 验证一个给定的payload和签名是否匹配。
func ValidateTicketSignature(payload TicketPayload, signatureB64 string) bool {
	// 重新序列化payload，确保与签名时的数据格式完全一致
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payloadBytes)
	expectedSignature := mac.Sum(nil)

	actualSignature, err := base64.RawURLEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}

	// 时间恒定的比较，防止时序攻击
	return hmac.Equal(expectedSignature, actualSignature)
}
