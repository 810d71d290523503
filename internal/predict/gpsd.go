package predict

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Location represents a ground station position.
type Location struct {
	Lat float64 `json:"lat"` // degrees North
	Lon float64 `json:"lon"` // degrees East
	Alt float64 `json:"alt"` // meters above sea level
}

// tpvReport is the subset of a gpsd TPV JSON object we need.
type tpvReport struct {
	Class string  `json:"class"`
	Mode  int     `json:"mode"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Alt   float64 `json:"altMSL"`
}

// LocationFromGPSD connects to gpsd at addr, sends a WATCH command, and
// reads TPV reports until a 2D or 3D fix arrives or timeout passes.
func LocationFromGPSD(ctx context.Context, addr string, timeout time.Duration) (Location, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Location{}, fmt.Errorf("gpsd connect: %w", err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return Location{}, fmt.Errorf("gpsd set deadline: %w", err)
	}

	if _, err := fmt.Fprint(conn, `?WATCH={"enable":true,"json":true};`); err != nil {
		return Location{}, fmt.Errorf("gpsd watch: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var report tpvReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue
		}
		if report.Class != "TPV" || report.Mode < 2 {
			continue
		}
		return Location{Lat: report.Lat, Lon: report.Lon, Alt: report.Alt}, nil
	}

	if err := scanner.Err(); err != nil {
		return Location{}, fmt.Errorf("gpsd read: %w", err)
	}

	return Location{}, fmt.Errorf("gpsd: no fix obtained within %v", timeout)
}
