package find

import (
	"net/http"

	"github.com/SlpAus/mapmyst-backend/internal/user"
	"github.com/gin-gonic/gin"
)

// GetMyFindsHandler 返回当前用户的发现历史。
// GET /api/find/mine
func GetMyFindsHandler(c *gin.Context) {
	userID := c.GetString(user.UserIDKey)

	finds, err := ListFindsByUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取发现记录"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"finds": finds})
}
