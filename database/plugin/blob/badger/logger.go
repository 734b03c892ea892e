// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// badgerLogger routes badger's printf-style logging to slog
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) badgerLogger {
	return badgerLogger{logger: logger.With("component", "database")}
}

func (l badgerLogger) log(level slog.Level, msg string, args ...any) {
	// badger ends most messages with a newline
	l.logger.Log(context.Background(), level, strings.TrimSuffix(fmt.Sprintf(msg, args...), "\n"))
}

func (l badgerLogger) Errorf(msg string, args ...any)   { l.log(slog.LevelError, msg, args...) }
func (l badgerLogger) Warningf(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }
func (l badgerLogger) Infof(msg string, args ...any)    { l.log(slog.LevelInfo, msg, args...) }
func (l badgerLogger) Debugf(msg string, args ...any)   { l.log(slog.LevelDebug, msg, args...) }
