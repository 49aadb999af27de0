package metadata

import (
	"bytes"
	"html"
)

// xmpFields maps XMP property names to the tag key they are stored under.
var xmpFields = []struct {
	Property string
	Key      string
}{
	{"xmp:CreatorTool", TagCreatorTool},
	{"Iptc4xmpExt:DigitalSourceType", TagDigitalSourceType},
	{"photoshop:Credit", "XMP:Credit"},
	{"dc:creator", "XMP:Creator"},
	{"tiff:Make", "XMP:Make"},
	{"tiff:Model", "XMP:Model"},
	{"exif:DateTimeOriginal", "XMP:DateTimeOriginal"},
}

var (
	xmpStart = []byte("<x:xmpmeta")
	xmpEnd   = []byte("</x:xmpmeta>")
)

// readXMP finds the first XMP packet and records the properties of interest,
// in either attribute or element form. Any "c2pa" mention marks a manifest.
func readXMP(data []byte, meta *FileMetadata) {
	if bytes.Contains(data, []byte("c2pa")) || bytes.Contains(data, []byte("C2PA")) {
		meta.set(TagC2PA, "present")
	}

	start := bytes.Index(data, xmpStart)
	if start < 0 {
		return
	}
	end := bytes.Index(data[start:], xmpEnd)
	if end < 0 {
		end = len(data) - start
	}
	packet := data[start : start+end]

	for _, f := range xmpFields {
		if v, ok := xmpValue(packet, f.Property); ok {
			meta.set(f.Key, v)
		}
	}
}

func xmpValue(packet []byte, property string) (string, bool) {
	attr := []byte(property + `="`)
	if i := bytes.Index(packet, attr); i >= 0 {
		rest := packet[i+len(attr):]
		if j := bytes.IndexByte(rest, '"'); j >= 0 {
			return html.UnescapeString(string(rest[:j])), true
		}
	}

	open := []byte("<" + property)
	i := bytes.Index(packet, open)
	if i < 0 {
		return "", false
	}
	rest := packet[i+len(open):]
	gt := bytes.IndexByte(rest, '>')
	if gt < 0 {
		return "", false
	}
	rest = rest[gt+1:]
	closeTag := []byte("</" + property + ">")
	j := bytes.Index(rest, closeTag)
	if j < 0 {
		return "", false
	}
	return html.UnescapeString(string(stripTags(rest[:j]))), true
}

// stripTags drops nested markup such as rdf:Seq/rdf:li wrappers.
func stripTags(b []byte) []byte {
	out := make([]byte, 0, len(b))
	depth := 0
	for _, c := range b {
		switch {
		case c == '<':
			depth++
		case c == '>' && depth > 0:
			depth--
		case depth == 0:
			out = append(out, c)
		}
	}
	return bytes.TrimSpace(out)
}
