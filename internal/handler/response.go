// internal/handler/response.go
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

func sendSuccess(w http.ResponseWriter, logger *zap.Logger, statusCode int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": message,
		"data":    data,
	}); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

func sendError(w http.ResponseWriter, logger *zap.Logger, statusCode int, message string, err error, extra map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]interface{}{
		"success": false,
		"message": message,
	}
	if err != nil {
		response["error"] = err.Error()
	}
	for k, v := range extra {
		response[k] = v
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
