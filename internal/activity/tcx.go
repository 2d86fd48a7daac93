package activity

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/geotrack/internal/metrics"
	"github.com/woozymasta/geotrack/internal/track"
	"golang.org/x/net/html/charset"
)

// Internal structures for TCX parsing, matched by local name so any
// namespace prefix is accepted.
type tcxTrackpoint struct {
	Time           string        `xml:"Time"`
	Position       *tcxPosition  `xml:"Position"`
	DistanceMeters string        `xml:"DistanceMeters"`
	Speed          *string       `xml:"Speed"`
	Cadence        string        `xml:"Cadence"`
	HeartRateBpm   *tcxHeartRate `xml:"HeartRateBpm"`
	Extensions     struct {
		TPX struct {
			Speed *string `xml:"Speed"`
		} `xml:"TPX"`
	} `xml:"Extensions"`
}

type tcxPosition struct {
	Latitude  string `xml:"LatitudeDegrees"`
	Longitude string `xml:"LongitudeDegrees"`
}

type tcxHeartRate struct {
	Value string `xml:"Value"`
	Text  string `xml:",chardata"`
}

var errNoRoot = errors.New("document has no root element")

// ParseTCX parses a Training Center XML document. Samples without a position
// are dropped, missing speeds are backfilled from time and distance.
func ParseTCX(data []byte) (*Activity, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	var (
		sportSeen bool
		rootSeen  bool
		sport     string
		raw       []tcxTrackpoint
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &track.ParseError{Format: string(FormatTCX), Token: -1, Err: err}
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		rootSeen = true

		switch se.Name.Local {
		case "Activity":
			if sportSeen {
				continue
			}
			sportSeen = true
			for _, attr := range se.Attr {
				if attr.Name.Local == "Sport" {
					sport = attr.Value
				}
			}

		case "Trackpoint":
			var tp tcxTrackpoint
			if err := dec.DecodeElement(&tp, &se); err != nil {
				return nil, &track.ParseError{Format: string(FormatTCX), Token: -1, Err: err}
			}
			raw = append(raw, tp)
		}
	}

	if !rootSeen {
		return nil, &track.ParseError{Format: string(FormatTCX), Token: -1, Err: errNoRoot}
	}

	act := &Activity{Type: sport, TrackPoints: make(track.Track, 0, len(raw))}
	if act.Type == "" {
		act.Type = UnknownType
	}

	for i, tp := range raw {
		p, ok := tp.point(act.Type)
		if !ok {
			reason := "no_position"
			if tp.Position != nil {
				reason = "bad_position"
			}
			metrics.SamplesDropped.WithLabelValues(string(FormatTCX), reason).Inc()
			log.Debug().Int("index", i).Str("reason", reason).Msg("Trackpoint dropped")
			continue
		}
		act.TrackPoints = append(act.TrackPoints, p)
	}

	track.BackfillSpeed(act.TrackPoints, act.Type)

	metrics.TracksParsed.WithLabelValues(string(FormatTCX)).Inc()
	metrics.PointsParsed.WithLabelValues(string(FormatTCX)).Add(float64(len(act.TrackPoints)))

	log.Debug().
		Str("activity", act.Type).
		Int("trackpoints", len(raw)).
		Int("points", len(act.TrackPoints)).
		Msg("TCX parsed")

	return act, nil
}

// point converts a raw sample, reporting false when it has no usable position.
func (tp tcxTrackpoint) point(activityType string) (track.Point, bool) {
	if tp.Position == nil {
		return track.Point{}, false
	}
	lat := parseFloat(tp.Position.Latitude)
	lng := parseFloat(tp.Position.Longitude)
	if lat == nil || lng == nil {
		return track.Point{}, false
	}

	p := track.Point{
		Time:           strings.TrimSpace(tp.Time),
		Lat:            *lat,
		Lng:            *lng,
		DistanceMeters: parseFloat(tp.DistanceMeters),
		Cadence:        parseInt(tp.Cadence),
	}

	switch {
	case tp.Speed != nil:
		p.Speed = parseFloat(*tp.Speed)
	case tp.Extensions.TPX.Speed != nil:
		p.Speed = parseFloat(*tp.Extensions.TPX.Speed)
	}

	if hr := tp.HeartRateBpm; hr != nil {
		if strings.TrimSpace(hr.Value) != "" {
			p.HeartRate = parseInt(hr.Value)
		} else {
			p.HeartRate = parseInt(hr.Text)
		}
	}

	p.Pace = initialPace(activityType, p.Speed)

	return p, true
}
