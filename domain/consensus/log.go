package consensus

import (
	"github.com/nipopow/nipowd/infrastructure/logger"
)

var log = logger.RegisterSubSystem("CHAN")
