package miner

import (
	"github.com/nipopow/nipowd/infrastructure/logger"
	"github.com/nipopow/nipowd/util/panics"
)

var log = logger.RegisterSubSystem("MINR")
var spawn = panics.GoroutineWrapperFunc(log)
