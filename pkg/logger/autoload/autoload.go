// Package autoload initialises the global logger with defaults on import.
package autoload

import logx "github.com/tanpawarit/Chative-Restaurant-Recommender/pkg/logger"

func init() {
	logx.Init()
}
