package logging

import (
	"context"
	"fmt"
	"github.com/samborkent/uuidv7"
	"log/slog"
	"sync"
)

type requestIdKey struct{}

// WithRequestId returns a copy of ctx carrying the request id used as contextId1 of log lines.
func WithRequestId(ctx context.Context, requestId string) context.Context {
	return context.WithValue(ctx, requestIdKey{}, requestId)
}

// RequestId returns the request id stored by WithRequestId, or an empty string.
func RequestId(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestId, _ := ctx.Value(requestIdKey{}).(string)
	return requestId
}

var ProgressMapMutex sync.RWMutex
var currentProgressIds = make(map[string]string)

// StartProgress registers a new correlation id for progressName. Until EndProgress is called,
// every log type with the sub type progressName carries it.
func StartProgress(progressName string) string {
	id := uuidv7.New().String()
	ProgressMapMutex.Lock()
	currentProgressIds[progressName] = id
	ProgressMapMutex.Unlock()
	return id
}

func EndProgress(progressName string) {
	ProgressMapMutex.Lock()
	delete(currentProgressIds, progressName)
	ProgressMapMutex.Unlock()
}

// GetLogType creates a slice which can be used for logging
// it takes 3 arguments: subtype, contextId1 and correlationId/progressName
// this is then used to push logs with those parameters to loki
func GetLogType(logType ...string) []any {
	var temp []interface{}
	for i := 0; i < len(logType); i++ {
		if i == 0 {
			temp = append(temp, "subType")
		} else if i == 1 {
			temp = append(temp, "contextId1")
		} else if i == 2 {
			if len(logType[i]) <= 0 {
				break
			}
			ProgressMapMutex.Lock()
			if val, ok := currentProgressIds[logType[i]]; ok {
				// progressName found in memory, use that id
				temp = append(temp, "correlationId")
				temp = append(temp, val)
				ProgressMapMutex.Unlock()
				continue
			}
			ProgressMapMutex.Unlock()

			// id was supplied, use the supplied id
			temp = append(temp, "correlationId")
		} else {
			slog.Warn(fmt.Sprintf("getLogType: 4th parameter unknown: %v", logType[i]))
			break
		}
		temp = append(temp, logType[i])
	}
	if len(temp) <= 4 {
		// get current progress id if id was not specified
		ProgressMapMutex.Lock()
		if val, ok := currentProgressIds[logType[0]]; ok {
			temp = append(temp, "correlationId")
			temp = append(temp, val)
		}
		ProgressMapMutex.Unlock()
	}
	return temp
}

func GetLogTypeInitialization() []any {
	return GetLogType("initialization")
}

func GetLogTypeImport() []any {
	return GetLogType("import")
}

// GetLogTypeRevision returns the key-values of revision engine log lines;
// the request id is logged as contextId1 so a write can be followed through the engine.
func GetLogTypeRevision(requestId string) []any {
	return GetLogType("revision", requestId)
}

func GetLogTypeArticles(requestId string) []any {
	return GetLogType("articles", requestId)
}

func GetLogTypeAuth(requestId string) []any {
	return GetLogType("auth", requestId)
}

func GetLogTypeCategories(requestId string) []any {
	return GetLogType("categories", requestId)
}
