package statsig

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "statsig")
