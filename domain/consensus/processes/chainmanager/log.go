package chainmanager

import (
	"github.com/nipopow/nipowd/infrastructure/logger"
)

var log = logger.RegisterSubSystem("CHMN")
