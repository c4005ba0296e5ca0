package protocol

import (
	"fmt"
	"strings"
)

// Echo is the firmware's acknowledgement of one received frame, printed as
//
//	Received: P=135, T=90, Trigger=0
//
// The angles are the raw decoded values, before the firmware constrains them.
type Echo struct {
	Pan     int     `json:"pan"`
	Tilt    int     `json:"tilt"`
	Trigger Trigger `json:"trigger"`
}

const echoPrefix = "Received:"

// ParseEcho parses a firmware echo line. Other firmware chatter (boot banner,
// trigger and laser notices) returns false.
func ParseEcho(line string) (Echo, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, echoPrefix) {
		return Echo{}, false
	}

	var e Echo
	var trig int
	if _, err := fmt.Sscanf(line, "Received: P=%d, T=%d, Trigger=%d", &e.Pan, &e.Tilt, &trig); err != nil {
		return Echo{}, false
	}
	if trig < 0 || trig > 255 {
		return Echo{}, false
	}
	e.Trigger = Trigger(trig)
	return e, true
}
