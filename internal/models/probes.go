package models

import (
	"encoding/json"
	"net"
	"strconv"
	"strings"

	"oscar-gateway/internal/validate"
)

type ProbeType string

const (
	ProbeAPI  ProbeType = "API"
	ProbePort ProbeType = "PORT"
	ProbePing ProbeType = "PING"
	ProbeHTTP ProbeType = "HTTP"
)

// ParseProbeType принимает тип в любом регистре.
func ParseProbeType(s string) (ProbeType, error) {
	switch t := ProbeType(strings.ToUpper(strings.TrimSpace(s))); t {
	case ProbeAPI, ProbePort, ProbePing, ProbeHTTP:
		return t, nil
	case "":
		return "", validate.Errorf("type", "Missing required field: type")
	default:
		return "", validate.Errorf("type", "Unsupported probe type %q: must be API, PORT, PING or HTTP", s)
	}
}

// Upstream - представление типа для middleware API (в нижнем регистре).
func (t ProbeType) Upstream() string {
	return strings.ToLower(string(t))
}

type probeInput struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Target string  `json:"target"`
	Port   *Number `json:"port"`
}

// NormalizeProbe проверяет и переписывает payload пробы: тип приводится
// к нижнему регистру, для PORT цель становится "host:port".
func NormalizeProbe(p Payload, partial bool) error {
	var in probeInput
	data, _ := json.Marshal(p)
	if err := json.Unmarshal(data, &in); err != nil {
		return validate.Errorf("body", "Invalid probe: %v", err)
	}

	if !partial && strings.TrimSpace(in.Name) == "" {
		return validate.Errorf("name", "Missing required field: name")
	}
	if partial && !p.Has("type") {
		if p.Has("target") || p.Has("port") {
			return validate.Errorf("type", "type is required when target or port change")
		}
		return nil
	}

	typ, err := ParseProbeType(in.Type)
	if err != nil {
		return err
	}
	target := strings.TrimSpace(in.Target)
	if target == "" {
		return validate.Errorf("target", "Missing required field: target")
	}

	if typ == ProbePort {
		if in.Port == nil {
			if host, port, err := net.SplitHostPort(target); err == nil {
				target = host
				in.Port = &Number{raw: port}
			} else {
				return validate.Errorf("port", "PORT probes require a port")
			}
		}
		port, err := in.Port.Int()
		if err != nil || port < 1 || port > 65535 {
			return validate.Errorf("port", "port must be an integer between 1 and 65535")
		}
		if host, _, err := net.SplitHostPort(target); err == nil {
			target = host
		}
		target = net.JoinHostPort(target, strconv.Itoa(port))
		_ = p.Set("port", port)
	}

	_ = p.Set("type", typ.Upstream())
	_ = p.Set("target", target)
	return nil
}
