// Package autoload initializes the global zerolog logger from LOG_* env
// vars as a side effect of import. Import it blank from main:
//
//	_ "github.com/superbryn/voice-agent/pkg/logger/autoload"
package autoload

import (
	configx "github.com/superbryn/voice-agent/pkg/config"
	logx "github.com/superbryn/voice-agent/pkg/logger"
)

func init() {
	cfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*cfg)
}
