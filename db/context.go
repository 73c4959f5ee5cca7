package db

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

const dbKey = "lexia.db"

// SetDBtoContext exposes the archive database to the handlers of a route group.
// A nil database answers 503 so the group can be mounted unconditionally.
func SetDBtoContext(database *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if database == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "arquivo de eventos desabilitado"})
			return
		}
		c.Set(dbKey, database)
		c.Next()
	}
}

func DBInstance(c *gin.Context) *gorm.DB {
	v, ok := c.Get(dbKey)
	if !ok {
		return nil
	}
	db, _ := v.(*gorm.DB)
	return db
}
