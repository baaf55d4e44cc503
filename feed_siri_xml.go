package main

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strings"
	"time"
)

type SiriXmlSource struct {
	url        string
	thresholds DelayThresholds
	httpClient *http.Client
}

func NewSiriXmlSource(url string, thresholds DelayThresholds, timeout time.Duration) *SiriXmlSource {
	return &SiriXmlSource{
		url:        url,
		thresholds: thresholds,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *SiriXmlSource) Fetch(ctx context.Context) (Snapshot, error) {
	body, err := fetchBody(ctx, s.httpClient, s.url, "application/xml", "feed_siri_xml")
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := decodeSiriXML(bytes.NewReader(body), s.thresholds)
	if err != nil {
		return Snapshot{}, parseError(err)
	}
	return snap, nil
}

// decodeSiriXML streams a VehicleMonitoring document, matching elements by
// local name so any namespace prefix works.
func decodeSiriXML(r io.Reader, thresholds DelayThresholds) (Snapshot, error) {
	dec := xml.NewDecoder(r)

	var (
		inSD, inVMD bool
		snap        = Snapshot{Vehicles: []VehicleObservation{}}
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Snapshot{}, err
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "ServiceDelivery":
				inSD = true
			case "ResponseTimestamp":
				if inSD && !inVMD && snap.GeneratedAt == "" {
					var v string
					if err := dec.DecodeElement(&v, &se); err == nil {
						snap.GeneratedAt = strings.TrimSpace(v)
					}
				}
			case "VehicleMonitoringDelivery":
				if inSD {
					inVMD = true
				}
			case "VehicleActivity":
				if inVMD {
					var va siriActivity
					if err := dec.DecodeElement(&va, &se); err != nil {
						return Snapshot{}, err
					}
					if v, ok := va.observation(thresholds); ok {
						snap.Vehicles = append(snap.Vehicles, v)
					}
				}
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "VehicleMonitoringDelivery":
				inVMD = false
			case "ServiceDelivery":
				inSD = false
			}
		}
	}
	return snap, nil
}
