package ldb

import "github.com/nipopow/nipowd/infrastructure/logger"

var log = logger.RegisterSubSystem("KVDB")
