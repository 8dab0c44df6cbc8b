package rpcserver

import (
	"github.com/nipopow/nipowd/infrastructure/logger"
	"github.com/nipopow/nipowd/util/panics"
)

var log = logger.RegisterSubSystem("RPCS")
var spawn = panics.GoroutineWrapperFunc(log)
