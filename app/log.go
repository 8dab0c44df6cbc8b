package app

import (
	"github.com/nipopow/nipowd/infrastructure/logger"
	"github.com/nipopow/nipowd/util/panics"
)

var log = logger.RegisterSubSystem("NPWD")
var spawn = panics.GoroutineWrapperFunc(log)
