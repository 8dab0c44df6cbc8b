package metrics

import (
	"github.com/nipopow/nipowd/infrastructure/logger"
	"github.com/nipopow/nipowd/util/panics"
)

var log = logger.RegisterSubSystem("METR")
var spawn = panics.GoroutineWrapperFunc(log)
