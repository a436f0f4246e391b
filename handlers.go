package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"stattrack/pkg/logger"
	"stattrack/pkg/sink"
	"stattrack/pkg/snapshot"
)

const maxHistoryLimit = 500

func setupRoutes(r *gin.Engine) {
	r.GET("/health", healthHandler)
	r.POST("/token", tokenHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/entities", listEntitiesHandler)
	authGroup.GET("/entities/:entity/latest", latestHandler)
	authGroup.GET("/entities/:entity/history", historyHandler)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func listEntitiesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entities": entities, "fields": fields})
}

// snapshotJSON renders unrecognized readings as null.
func snapshotJSON(s snapshot.Snapshot) gin.H {
	values := make(map[string]*int, len(fields))
	for _, f := range fields {
		r, ok := s.Get(f)
		if !ok || !r.Recognized {
			values[f] = nil
			continue
		}
		v := r.Value
		values[f] = &v
	}
	return gin.H{
		"entity":      s.Entity,
		"captured_at": s.CapturedAt.In(zone).Format(sink.TimestampLayout),
		"values":      values,
	}
}

func sinkError(c *gin.Context, err error) {
	logger.WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"entity": c.Param("entity"),
	}).WithError(err).Error("sink read failed")
	status := http.StatusInternalServerError
	if errors.Is(err, sink.ErrSinkUnavailable) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": "storage unavailable"})
}

func latestHandler(c *gin.Context) {
	entity := c.Param("entity")
	last, err := store.Latest(c.Request.Context(), entity)
	if err != nil {
		sinkError(c, err)
		return
	}
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no records for entity"})
		return
	}
	c.JSON(http.StatusOK, snapshotJSON(*last))
}

func historyHandler(c *gin.Context) {
	entity := c.Param("entity")
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	hist, err := store.History(c.Request.Context(), entity, limit)
	if err != nil {
		sinkError(c, err)
		return
	}
	rows := make([]gin.H, 0, len(hist))
	for _, s := range hist {
		rows = append(rows, snapshotJSON(s))
	}
	c.JSON(http.StatusOK, gin.H{"entity": entity, "count": len(rows), "records": rows})
}
