package signals

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/humanmark/forensics/internal/metadata"
)

var (
	descMetadataSignature = Descriptor{
		ID:          "metadata_signature",
		Category:    CategoryMetadata,
		Icon:        "tag",
		Description: "Generator or camera names found in embedded tags and the file name",
	}
	descEXIFPresence = Descriptor{
		ID:          "exif_presence",
		Category:    CategoryMetadata,
		Icon:        "camera",
		Description: "Presence of capture EXIF such as exposure, camera, date and GPS",
	}
	descProvenanceManifest = Descriptor{
		ID:          "provenance_manifest",
		Category:    CategoryMetadata,
		Icon:        "shield",
		Description: "C2PA or IPTC provenance declaring algorithmic media",
	}
	descDimensionSignature = Descriptor{
		ID:          "dimension_signature",
		Category:    CategoryMetadata,
		Icon:        "ruler",
		Description: "Image dimensions typical of generator presets",
	}
	descFilenamePattern = Descriptor{
		ID:          "filename_pattern",
		Category:    CategoryMetadata,
		Icon:        "file",
		Description: "File name patterns of generators versus camera firmware",
	}
)

// aiToolMarkers are lower-case substrings naming generators, their model
// families and prompt-parameter dumps.
var aiToolMarkers = []string{
	"midjourney", "stable diffusion", "stablediffusion", "sdxl", "dreamstudio",
	"dall-e", "dall·e", "dalle", "openai", "chatgpt", "gpt-4o",
	"firefly", "imagen", "gemini", "leonardo.ai", "ideogram",
	"flux.1", "flux-1", "flux1", "black forest labs",
	"comfyui", "automatic1111", "novelai", "invokeai", "fooocus",
	"runway", "sora", "pika labs", "kling ai", "klingai",
	"nightcafe", "craiyon", "bing image creator", "playground ai", "artbreeder",
	"synthid", "trainedalgorithmicmedia",
	"negative prompt", "steps:", "sampler:", "cfg scale",
}

// aiToolKeys are tag keys only generators write.
var aiToolKeys = []string{
	"parameters", "prompt", "workflow", "sd-metadata", "invokeai_metadata", "dream",
}

var cameraMarkers = []string{
	"canon", "nikon", "sony", "fujifilm", "olympus", "panasonic", "lumix",
	"leica", "pentax", "hasselblad", "ricoh", "sigma", "kodak",
	"apple", "iphone", "samsung", "google", "pixel", "huawei", "xiaomi",
	"gopro", "dji",
}

const (
	aiMatchBase     = 85
	aiMatchStep     = 5
	aiMatchCap      = 98
	cameraMatchBase = 15
	cameraMatchStep = 5
	cameraMatchMin  = 5
)

// evalMetadataSignature matches the lower-cased file name, tag keys and tag
// values against the generator and camera vocabularies. A generator match
// wins over a camera match.
func evalMetadataSignature(in *Input) Finding {
	name := strings.ToLower(in.Meta.FileName)

	ai := map[string]bool{}
	camera := map[string]bool{}
	scan := func(s string) {
		for _, m := range aiToolMarkers {
			if strings.Contains(s, m) {
				ai[m] = true
			}
		}
		for _, m := range cameraMarkers {
			if strings.Contains(s, m) {
				camera[m] = true
			}
		}
	}

	scan(name)
	for k, v := range in.Meta.EXIF {
		key := strings.ToLower(k)
		for _, m := range aiToolKeys {
			if key == m {
				ai["key:"+m] = true
			}
		}
		scan(strings.ToLower(v))
	}

	switch {
	case len(ai) > 0:
		score := min(aiMatchBase+aiMatchStep*(len(ai)-1), aiMatchCap)
		return scored(float64(score), "generator markers: %s", joinKeys(ai))
	case len(camera) > 0:
		score := max(cameraMatchBase-cameraMatchStep*(len(camera)-1), cameraMatchMin)
		return scored(float64(score), "camera markers: %s", joinKeys(camera))
	}
	return neutral("no generator or camera markers")
}

func joinKeys(m map[string]bool) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// captureFields groups the EXIF tags a camera writes.
var captureFields = []struct {
	Name string
	Tags []string
}{
	{"camera", []string{"Make", "Model", "LensModel"}},
	{"date", []string{"DateTimeOriginal", "DateTimeDigitized", "DateTime"}},
	{"exposure", []string{"ExposureTime", "FNumber", "ISOSpeedRatings", "PhotographicSensitivity", "FocalLength"}},
	{"gps", []string{"GPSLatitude", "GPSLongitude", "GPSTimeStamp"}},
}

func evalEXIFPresence(in *Input) Finding {
	if in.Meta.IsVideo {
		return neutral("capture EXIF is not expected in video containers")
	}

	var present []string
	for _, f := range captureFields {
		if in.Meta.HasTag(f.Tags...) {
			present = append(present, f.Name)
		}
	}

	absence := float64(len(captureFields)-len(present)) / float64(len(captureFields))
	score := between(absence, 20, 68)
	if len(present) == 0 {
		return scored(score, "no capture EXIF")
	}
	return scored(score, "capture fields present: %s", strings.Join(present, ", "))
}

const (
	sourceTrained   = "trainedalgorithmicmedia"
	sourceComposite = "compositesynthetic"
	sourceCapture   = "digitalcapture"
)

func evalProvenanceManifest(in *Input) Finding {
	source := ""
	if v, ok := in.Meta.Tag(metadata.TagDigitalSourceType); ok {
		source = strings.ToLower(v)
	} else {
		for _, v := range in.Meta.EXIF {
			lv := strings.ToLower(v)
			if strings.Contains(lv, sourceTrained) || strings.Contains(lv, sourceComposite) {
				source = lv
				break
			}
		}
	}
	_, hasC2PA := in.Meta.Tag(metadata.TagC2PA)

	switch {
	case strings.Contains(source, "compositewithtrainedalgorithmicmedia"), strings.Contains(source, sourceComposite):
		return scored(85, "provenance declares composite synthetic media")
	case strings.Contains(source, sourceTrained):
		return scored(95, "provenance declares trained algorithmic media")
	case strings.Contains(source, sourceCapture):
		return scored(10, "provenance declares digital capture")
	case hasC2PA:
		return scored(60, "C2PA manifest present without a source type")
	}
	return neutral("no provenance manifest")
}

// generatorPresets are output sizes of common generators and their upscalers.
var generatorPresets = map[[2]int]bool{
	{512, 512}: true, {768, 768}: true, {1024, 1024}: true, {2048, 2048}: true,
	{1024, 1792}: true, {1792, 1024}: true, {1344, 768}: true, {768, 1344}: true,
	{1152, 896}: true, {896, 1152}: true, {1216, 832}: true, {832, 1216}: true,
	{1536, 640}: true, {640, 1536}: true, {1456, 816}: true, {816, 1456}: true,
	{1232, 928}: true, {928, 1232}: true, {1536, 1024}: true, {1024, 1536}: true,
}

func evalDimensionSignature(in *Input) Finding {
	w, h := in.Buffer.SourceWidth, in.Buffer.SourceHeight
	if w == 0 || h == 0 {
		w, h = in.Meta.Width, in.Meta.Height
	}
	if w < 64 || h < 64 {
		return neutral("image too small to compare with generator presets")
	}

	strength := 0.0
	var notes []string
	switch {
	case generatorPresets[[2]int{w, h}]:
		strength = 1
		notes = append(notes, "generator preset")
	case w%64 == 0 && h%64 == 0:
		strength = 0.6
		notes = append(notes, "multiple of 64")
	case w%8 == 0 && h%8 == 0:
		strength = 0.35
	}
	if w == h && strength < 1 {
		strength += 0.15
		notes = append(notes, "square")
	}
	if strength == 0 && max(w, h) >= 2000 && isCameraAspect(w, h) {
		notes = append(notes, "camera aspect ratio")
	}

	detail := strconv.Itoa(w) + "x" + strconv.Itoa(h)
	if len(notes) > 0 {
		detail += " (" + strings.Join(notes, ", ") + ")"
	}
	return scored(between(strength, 25, 80), "%s", detail)
}

func isCameraAspect(w, h int) bool {
	long, short := max(w, h), min(w, h)
	r := float64(long) / float64(short)
	for _, a := range []float64{4.0 / 3, 3.0 / 2, 16.0 / 9} {
		if r > a-0.01 && r < a+0.01 {
			return true
		}
	}
	return false
}

var (
	generatorNames = []*regexp.Regexp{
		regexp.MustCompile(`^(dall-?e|midjourney|mj_|sd_|sdxl|comfyui|imagefx|image_fx|imagen|firefly|leonardo|ideogram|grok|flux|gemini_generated|chatgpt image)`),
		regexp.MustCompile(`_\d{5}_\.(png|jpe?g|webp)$`),
		regexp.MustCompile(`^\d{5}-\d{6,}`),
		regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.`),
		regexp.MustCompile(`upscaled|generated`),
	}
	cameraNames = []*regexp.Regexp{
		regexp.MustCompile(`^(img|dsc|dscf|dscn|_dsc|pxl|mvimg|gopr|dji|sam|imgp|p)_?\d{3,}`),
		regexp.MustCompile(`^\d{8}_\d{6}`),
		regexp.MustCompile(`^photo[-_ ]\d{4}`),
	}
)

func evalFilenamePattern(in *Input) Finding {
	name := strings.ToLower(filepath.Base(in.Meta.FileName))
	if name == "" || name == "." {
		return neutral("no file name")
	}

	for _, re := range generatorNames {
		if re.MatchString(name) {
			return scored(80, "generator-style name %q", name)
		}
	}
	for _, re := range cameraNames {
		if re.MatchString(name) {
			return scored(25, "camera-style name %q", name)
		}
	}
	if strings.Contains(name, "screenshot") {
		return scored(55, "screenshot name %q", name)
	}
	return neutral("uninformative name")
}

func evalThumbnailConsistency(in *Input) Finding {
	if !in.IsJPEG() {
		return neutral("embedded thumbnails are only checked for JPEG")
	}

	thumb := in.Meta.HasTag(metadata.TagThumbnailPresent)
	camera := in.Meta.HasTag("Make", "Model")

	switch {
	case thumb && camera:
		return scored(20, "camera EXIF with embedded thumbnail")
	case thumb:
		return scored(45, "thumbnail without camera EXIF")
	case camera:
		return scored(60, "camera EXIF but thumbnail stripped")
	}
	return scored(65, "no EXIF thumbnail")
}
