package metadata

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"
)

// containerInfo is what the container parsers recover from a video.
type containerInfo struct {
	Format       string
	Encoder      string
	Software     string
	Title        string
	Comment      string
	CreationTime time.Time
	Duration     float64
	Width        int
	Height       int
	HasAudio     bool
}

func (c containerInfo) apply(meta *FileMetadata) {
	meta.Width, meta.Height = c.Width, c.Height
	meta.set(TagContainer, c.Format)
	meta.set(TagEncoder, c.Encoder)
	meta.set("Software", c.Software)
	meta.set("Title", c.Title)
	meta.set("Comment", c.Comment)
	if !c.CreationTime.IsZero() {
		meta.set(TagCreationTime, c.CreationTime.UTC().Format(time.RFC3339))
	}
	if c.Duration > 0 {
		meta.set(TagDuration, strconv.FormatFloat(c.Duration, 'f', 2, 64))
	}
	if c.Format != "" && c.Format != "unknown" {
		meta.set(TagHasAudio, strconv.FormatBool(c.HasAudio))
	}
}

// knownEncoders is checked in order; the first substring hit names the tool.
var knownEncoders = []struct {
	Marker string
	Name   string
}{
	{"runway", "Runway"},
	{"pika", "Pika Labs"},
	{"sora", "OpenAI Sora"},
	{"modelscope", "ModelScope"},
	{"lavf", "ffmpeg"},
	{"ffmpeg", "ffmpeg"},
	{"handbrake", "HandBrake"},
	{"premiere", "Adobe Premiere"},
	{"final cut", "Final Cut Pro"},
	{"davinci", "DaVinci Resolve"},
	{"x264", "x264"},
	{"x265", "x265"},
}

func extractEncoder(b []byte) string {
	lower := bytes.ToLower(b)
	for _, e := range knownEncoders {
		if bytes.Contains(lower, []byte(e.Marker)) {
			return e.Name
		}
	}
	return ""
}

// mp4Epoch is the ISO BMFF time origin.
var mp4Epoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)

var mp4Containers = map[string]bool{
	"moov": true, "trak": true, "mdia": true, "minf": true, "udta": true, "edts": true, "ilst": true,
}

// parseMP4 walks ISO BMFF boxes for mvhd, tkhd, hdlr and iTunes-style
// metadata items.
func parseMP4(data []byte) containerInfo {
	c := containerInfo{Format: "mp4"}
	if len(data) >= 12 && string(data[8:12]) == "qt  " {
		c.Format = "mov"
	}

	var track struct {
		w, h    int
		handler string
	}
	flushTrack := func() {
		switch track.handler {
		case "vide":
			if c.Width == 0 && track.w > 0 {
				c.Width, c.Height = track.w, track.h
			}
		case "soun":
			c.HasAudio = true
		}
	}

	var walk func(b []byte, depth int)
	walk = func(b []byte, depth int) {
		if depth > 8 {
			return
		}
		for off := 0; off+8 <= len(b); {
			size := int(binary.BigEndian.Uint32(b[off : off+4]))
			typ := string(b[off+4 : off+8])
			header := 8
			if size == 1 && off+16 <= len(b) {
				size = int(binary.BigEndian.Uint64(b[off+8 : off+16]))
				header = 16
			} else if size == 0 {
				size = len(b) - off
			}
			if size < header {
				return
			}
			if off+size > len(b) {
				size = len(b) - off
			}
			payload := b[off+header : off+size]

			switch {
			case typ == "trak":
				track.w, track.h, track.handler = 0, 0, ""
				walk(payload, depth+1)
				flushTrack()
			case mp4Containers[typ]:
				walk(payload, depth+1)
			case typ == "meta":
				if len(payload) >= 8 && string(payload[4:8]) != "hdlr" {
					payload = payload[4:]
				}
				walk(payload, depth+1)
			case typ == "mvhd":
				c.CreationTime, c.Duration = parseMVHD(payload)
			case typ == "tkhd":
				track.w, track.h = parseTKHD(payload)
			case typ == "hdlr":
				if len(payload) >= 12 {
					track.handler = string(payload[8:12])
				}
			case strings.HasPrefix(typ, "\xa9"):
				setMP4Item(&c, typ, payload)
			}

			off += size
		}
	}
	walk(data, 0)

	if c.Encoder == "" {
		c.Encoder = extractEncoder(data[:min(len(data), 1<<16)])
	}
	return c
}

func parseMVHD(p []byte) (time.Time, float64) {
	if len(p) < 20 {
		return time.Time{}, 0
	}
	var created uint64
	var timescale uint32
	var duration uint64
	if p[0] == 1 {
		if len(p) < 32 {
			return time.Time{}, 0
		}
		created = binary.BigEndian.Uint64(p[4:12])
		timescale = binary.BigEndian.Uint32(p[20:24])
		duration = binary.BigEndian.Uint64(p[24:32])
	} else {
		created = uint64(binary.BigEndian.Uint32(p[4:8]))
		timescale = binary.BigEndian.Uint32(p[12:16])
		duration = uint64(binary.BigEndian.Uint32(p[16:20]))
	}

	var t time.Time
	if created > 0 {
		t = mp4Epoch.Add(time.Duration(created) * time.Second)
	}
	if timescale == 0 {
		return t, 0
	}
	return t, float64(duration) / float64(timescale)
}

// parseTKHD reads the 16.16 fixed-point width and height at the box end.
func parseTKHD(p []byte) (int, int) {
	if len(p) < 8 {
		return 0, 0
	}
	tail := p[len(p)-8:]
	return int(binary.BigEndian.Uint32(tail[0:4]) >> 16), int(binary.BigEndian.Uint32(tail[4:8]) >> 16)
}

func setMP4Item(c *containerInfo, typ string, payload []byte) {
	// item payload: size, "data", type(4), locale(4), value
	if len(payload) < 16 || string(payload[4:8]) != "data" {
		return
	}
	size := int(binary.BigEndian.Uint32(payload[0:4]))
	if size > len(payload) || size < 16 {
		size = len(payload)
	}
	value := strings.TrimSpace(string(payload[16:size]))

	switch typ[1:] {
	case "too":
		c.Encoder = value
	case "swr":
		c.Software = value
	case "nam":
		c.Title = value
	case "cmt":
		c.Comment = value
	case "day":
		if t, err := time.Parse(time.RFC3339, value); err == nil && c.CreationTime.IsZero() {
			c.CreationTime = t
		}
	}
}

// Matroska element ids.
var (
	ebmlMuxingApp     = []byte{0x4D, 0x80}
	ebmlWritingApp    = []byte{0x57, 0x41}
	ebmlDuration      = []byte{0x44, 0x89}
	ebmlTimecodeScale = []byte{0x2A, 0xD7, 0xB1}
	ebmlDateUTC       = []byte{0x44, 0x61}
	ebmlTitle         = []byte{0x7B, 0xA9}
	ebmlAudioTrack    = []byte{0x83, 0x81, 0x02}
)

var matroskaEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// parseWebM scans the header region for segment info elements.
func parseWebM(data []byte) containerInfo {
	c := containerInfo{Format: "webm"}
	if !bytes.Contains(data[:min(100, len(data))], []byte("webm")) {
		c.Format = "mkv"
	}
	head := data[:min(len(data), 1<<16)]

	if v, ok := ebmlElement(head, ebmlWritingApp); ok {
		c.Software = string(v)
	}
	if v, ok := ebmlElement(head, ebmlMuxingApp); ok {
		c.Encoder = string(v)
	}
	if name := extractEncoder([]byte(c.Software + " " + c.Encoder)); name != "" {
		c.Encoder = name
	}
	if v, ok := ebmlElement(head, ebmlTitle); ok {
		c.Title = string(v)
	}

	scale := 1e6
	if v, ok := ebmlElement(head, ebmlTimecodeScale); ok && len(v) <= 8 {
		scale = float64(beUint(v))
	}
	if v, ok := ebmlElement(head, ebmlDuration); ok {
		switch len(v) {
		case 4:
			c.Duration = float64(math.Float32frombits(binary.BigEndian.Uint32(v))) * scale / 1e9
		case 8:
			c.Duration = math.Float64frombits(binary.BigEndian.Uint64(v)) * scale / 1e9
		}
	}
	if v, ok := ebmlElement(head, ebmlDateUTC); ok && len(v) == 8 {
		c.CreationTime = matroskaEpoch.Add(time.Duration(int64(binary.BigEndian.Uint64(v))))
	}
	c.HasAudio = bytes.Contains(data, ebmlAudioTrack)
	return c
}

// ebmlElement finds id and returns its payload, decoding the size vint.
func ebmlElement(b, id []byte) ([]byte, bool) {
	i := bytes.Index(b, id)
	if i < 0 {
		return nil, false
	}
	rest := b[i+len(id):]
	size, n := readVint(rest)
	if n == 0 || size < 0 || n+size > len(rest) {
		return nil, false
	}
	return rest[n : n+size], true
}

func readVint(b []byte) (int, int) {
	if len(b) == 0 || b[0] == 0 {
		return 0, 0
	}
	length := 1
	for mask := byte(0x80); b[0]&mask == 0; mask >>= 1 {
		length++
	}
	if length > 8 || len(b) < length {
		return 0, 0
	}
	v := uint64(b[0] & (0xFF >> length))
	for i := 1; i < length; i++ {
		v = v<<8 | uint64(b[i])
	}
	return int(v), length
}

func beUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// parseAVI reads the main header and the INFO software chunk.
func parseAVI(data []byte) containerInfo {
	c := containerInfo{Format: "avi"}

	if i := bytes.Index(data, []byte("avih")); i >= 0 && i+8+40 <= len(data) {
		h := data[i+8:]
		usPerFrame := binary.LittleEndian.Uint32(h[0:4])
		frames := binary.LittleEndian.Uint32(h[16:20])
		c.Width = int(binary.LittleEndian.Uint32(h[32:36]))
		c.Height = int(binary.LittleEndian.Uint32(h[36:40]))
		c.Duration = float64(usPerFrame) * float64(frames) / 1e6
	}
	if i := bytes.Index(data, []byte("ISFT")); i >= 0 && i+8 <= len(data) {
		size := int(binary.LittleEndian.Uint32(data[i+4 : i+8]))
		if i+8+size <= len(data) {
			c.Software = strings.TrimRight(string(data[i+8:i+8+size]), "\x00")
		}
	}
	c.Encoder = extractEncoder([]byte(c.Software))
	if c.Encoder == "" {
		c.Encoder = extractEncoder(data[:min(len(data), 4096)])
	}
	c.HasAudio = bytes.Contains(data, []byte("auds"))
	return c
}
