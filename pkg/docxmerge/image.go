package docxmerge

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ImageFormat identifies a supported image binary format
type ImageFormat int

const (
	FormatPNG ImageFormat = iota
	FormatJPEG
	FormatGIF
	FormatBMP
	FormatTIFF
)

// ContentType returns the MIME type for the format
func (f ImageFormat) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatGIF:
		return "image/gif"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	default:
		return "image/png"
	}
}

// Extension returns the part file extension for the format
func (f ImageFormat) Extension() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	case FormatGIF:
		return "gif"
	case FormatBMP:
		return "bmp"
	case FormatTIFF:
		return "tiff"
	default:
		return "png"
	}
}

// ImageSize is a pixel dimension pair
type ImageSize struct {
	Width  int
	Height int
}

// ImagePayload is a normalised inline image: its bytes, detected format and
// the resolved target dimensions in pixels.
type ImagePayload struct {
	Data   []byte
	Format ImageFormat
	Width  int
	Height int
}

var (
	pngMagic   = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic  = []byte{0xFF, 0xD8, 0xFF}
	gif87Magic = []byte("GIF87a")
	gif89Magic = []byte("GIF89a")
	bmpMagic   = []byte{0x42, 0x4D}
	tiffLittle = []byte{0x49, 0x49, 0x2A, 0x00}
	tiffBig    = []byte{0x4D, 0x4D, 0x00, 0x2A}
)

// SniffImageFormat detects the binary format from magic bytes
func SniffImageFormat(data []byte) (ImageFormat, bool) {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return FormatPNG, true
	case bytes.HasPrefix(data, jpegMagic):
		return FormatJPEG, true
	case bytes.HasPrefix(data, gif87Magic), bytes.HasPrefix(data, gif89Magic):
		return FormatGIF, true
	case bytes.HasPrefix(data, bmpMagic):
		return FormatBMP, true
	case bytes.HasPrefix(data, tiffLittle), bytes.HasPrefix(data, tiffBig):
		return FormatTIFF, true
	default:
		return 0, false
	}
}

func formatFromMIME(mime string) (ImageFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return FormatPNG, true
	case "image/jpeg", "image/jpg":
		return FormatJPEG, true
	case "image/gif":
		return FormatGIF, true
	case "image/bmp", "image/x-ms-bmp":
		return FormatBMP, true
	case "image/tiff":
		return FormatTIFF, true
	default:
		return 0, false
	}
}

func formatFromExtension(ext string) (ImageFormat, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return FormatPNG, true
	case "jpg", "jpeg":
		return FormatJPEG, true
	case "gif":
		return FormatGIF, true
	case "bmp":
		return FormatBMP, true
	case "tif", "tiff":
		return FormatTIFF, true
	default:
		return 0, false
	}
}

// intrinsicImageSize reads the pixel dimensions embedded in the binary
// header. BMP and TIFF sizes are not inferred.
func intrinsicImageSize(data []byte, format ImageFormat) (ImageSize, bool) {
	switch format {
	case FormatPNG:
		return pngSize(data)
	case FormatGIF:
		return gifSize(data)
	case FormatJPEG:
		return jpegSize(data)
	default:
		return ImageSize{}, false
	}
}

// pngSize reads the IHDR dimensions: big-endian u32 at offsets 16 and 20
func pngSize(data []byte) (ImageSize, bool) {
	if len(data) < 24 {
		return ImageSize{}, false
	}
	w := int(data[16])<<24 | int(data[17])<<16 | int(data[18])<<8 | int(data[19])
	h := int(data[20])<<24 | int(data[21])<<16 | int(data[22])<<8 | int(data[23])
	if w <= 0 || h <= 0 {
		return ImageSize{}, false
	}
	return ImageSize{Width: w, Height: h}, true
}

// gifSize reads the logical screen size: little-endian u16 at offsets 6 and 8
func gifSize(data []byte) (ImageSize, bool) {
	if len(data) < 10 {
		return ImageSize{}, false
	}
	w := int(data[6]) | int(data[7])<<8
	h := int(data[8]) | int(data[9])<<8
	if w <= 0 || h <= 0 {
		return ImageSize{}, false
	}
	return ImageSize{Width: w, Height: h}, true
}

// jpegSize walks the segment chain looking for a start-of-frame marker
// (C0..CF excluding the C4/C8/CC non-frame markers) and reads the frame
// dimensions from it.
func jpegSize(data []byte) (ImageSize, bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return ImageSize{}, false
	}

	i := 2
	for i < len(data)-1 {
		if data[i] != 0xFF {
			return ImageSize{}, false
		}
		// skip fill bytes
		for i < len(data) && data[i] == 0xFF {
			i++
		}
		if i >= len(data) {
			return ImageSize{}, false
		}
		marker := data[i]
		i++

		// standalone markers carry no length field
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD9) {
			continue
		}
		if i+2 > len(data) {
			return ImageSize{}, false
		}
		segLen := int(data[i])<<8 | int(data[i+1])
		if segLen < 2 {
			return ImageSize{}, false
		}

		isFrame := marker >= 0xC0 && marker <= 0xCF &&
			marker != 0xC4 && marker != 0xC8 && marker != 0xCC
		if isFrame {
			if i+7 > len(data) {
				return ImageSize{}, false
			}
			h := int(data[i+3])<<8 | int(data[i+4])
			w := int(data[i+5])<<8 | int(data[i+6])
			if w <= 0 || h <= 0 {
				return ImageSize{}, false
			}
			return ImageSize{Width: w, Height: h}, true
		}
		i += segLen
	}
	return ImageSize{}, false
}

// parseDataURI parses a data URI and returns the MIME type hint and the
// decoded bytes. Only base64 payloads are supported.
func parseDataURI(dataURI string) (string, []byte, error) {
	if !strings.HasPrefix(dataURI, "data:") {
		return "", nil, NewImageError(ImageInvalidSource, "not a data URI")
	}

	rest := dataURI[5:]
	commaIndex := strings.Index(rest, ",")
	if commaIndex == -1 {
		return "", nil, NewImageError(ImageInvalidSource, "malformed data URI")
	}

	metadata := rest[:commaIndex]
	payload := rest[commaIndex+1:]
	if payload == "" {
		return "", nil, NewImageError(ImageInvalidSource, "data URI carries no data")
	}

	if !strings.HasSuffix(metadata, ";base64") {
		return "", nil, NewImageError(ImageInvalidSource, "data URI must be base64-encoded")
	}
	mimeType := strings.TrimSuffix(metadata, ";base64")

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, NewImageError(ImageInvalidSource, fmt.Sprintf("invalid base64 data: %v", err))
	}

	return mimeType, data, nil
}

// imageSizeOptions carries the explicit sizing directives read from an image
// object
type imageSizeOptions struct {
	width          *int
	height         *int
	maxWidth       *int
	maxHeight      *int
	scale          *float64
	preserveAspect *bool
}

// ResolveImagePayloads normalises the value of an image expression into a
// list of payloads: arrays produce one payload per non-null element, null
// produces none, and anything else one.
func ResolveImagePayloads(v Value, cfg *Config) ([]*ImagePayload, error) {
	switch v.Kind() {
	case NullValue:
		return nil, nil
	case ArrayValue:
		var payloads []*ImagePayload
		for _, item := range v.AsArray() {
			if item.IsNull() {
				continue
			}
			payload, err := ResolveImagePayload(item, cfg)
			if err != nil {
				return nil, err
			}
			payloads = append(payloads, payload)
		}
		return payloads, nil
	default:
		payload, err := ResolveImagePayload(v, cfg)
		if err != nil {
			return nil, err
		}
		return []*ImagePayload{payload}, nil
	}
}

// ResolveImagePayload turns a string or object value into a normalised image
// payload
func ResolveImagePayload(v Value, cfg *Config) (*ImagePayload, error) {
	var src string
	var opts imageSizeOptions

	switch v.Kind() {
	case StringValue:
		src = v.AsString()
	case ObjectValue:
		obj := v.AsObject()
		srcVal, ok := objGetFold(obj, "src", "data", "base64", "path", "value")
		if !ok || srcVal.Kind() != StringValue {
			return nil, NewImageError(ImageInvalidSource, "image object carries no source")
		}
		src = srcVal.AsString()

		var err error
		if opts.width, err = intOption(obj, "width", "widthPx"); err != nil {
			return nil, err
		}
		if opts.height, err = intOption(obj, "height", "heightPx"); err != nil {
			return nil, err
		}
		if opts.maxWidth, err = intOption(obj, "maxWidth"); err != nil {
			return nil, err
		}
		if opts.maxHeight, err = intOption(obj, "maxHeight"); err != nil {
			return nil, err
		}
		opts.scale = floatOption(obj, "scale")
		opts.preserveAspect = boolOption(obj, "preserveAspectRatio", "keepAspectRatio", "lockAspectRatio")
	default:
		return nil, NewImageError(ImageInvalidSource, fmt.Sprintf("cannot resolve %s value as an image", v.Kind()))
	}

	data, mimeHint, extHint, err := acquireImageBytes(src)
	if err != nil {
		return nil, err
	}

	format, ok := detectImageFormat(data, mimeHint, extHint)
	if !ok {
		return nil, NewImageError(ImageUnknownFormat, "image bytes match no supported format")
	}

	var intrinsic *ImageSize
	if size, ok := intrinsicImageSize(data, format); ok {
		intrinsic = &size
	}

	width, height, err := resolveImageSize(opts, intrinsic, cfg.DefaultImageSize)
	if err != nil {
		return nil, err
	}

	return &ImagePayload{
		Data:   data,
		Format: format,
		Width:  width,
		Height: height,
	}, nil
}

// acquireImageBytes resolves a source string: a data URI, an existing file
// path, or inline base64 content.
func acquireImageBytes(src string) (data []byte, mimeHint, extHint string, err error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, "", "", NewImageError(ImageInvalidSource, "empty image source")
	}

	if strings.HasPrefix(src, "data:") {
		mime, decoded, err := parseDataURI(src)
		if err != nil {
			return nil, "", "", err
		}
		return decoded, mime, "", nil
	}

	if info, statErr := os.Stat(src); statErr == nil && !info.IsDir() {
		content, readErr := os.ReadFile(src)
		if readErr != nil {
			return nil, "", "", NewImageError(ImageInvalidSource, fmt.Sprintf("failed to read image file: %v", readErr))
		}
		return content, "", filepath.Ext(src), nil
	}

	decoded, decodeErr := base64.StdEncoding.DecodeString(strings.TrimSpace(src))
	if decodeErr != nil {
		return nil, "", "", NewImageError(ImageInvalidSource, "source is neither a data URI, an existing file, nor base64 content")
	}
	return decoded, "", "", nil
}

// detectImageFormat applies the detection priority: MIME hint, magic bytes,
// file extension.
func detectImageFormat(data []byte, mimeHint, extHint string) (ImageFormat, bool) {
	if mimeHint != "" {
		if format, ok := formatFromMIME(mimeHint); ok {
			return format, true
		}
	}
	if format, ok := SniffImageFormat(data); ok {
		return format, true
	}
	if extHint != "" {
		if format, ok := formatFromExtension(extHint); ok {
			return format, true
		}
	}
	return 0, false
}

// objGetFold reads object fields case-insensitively, returning the first
// non-null value among the given names, in name priority order.
func objGetFold(obj *Object, names ...string) (Value, bool) {
	for _, name := range names {
		for _, key := range obj.Keys() {
			if strings.EqualFold(key, name) {
				if v, ok := obj.Get(key); ok && !v.IsNull() {
					return v, true
				}
			}
		}
	}
	return Null(), false
}

func intOption(obj *Object, names ...string) (*int, error) {
	v, ok := objGetFold(obj, names...)
	if !ok {
		return nil, nil
	}
	var n int
	switch v.Kind() {
	case IntValue:
		n = int(v.AsInt())
	case FloatValue:
		n = roundHalfAway(v.AsFloat())
	case StringValue:
		parsed, err := strconv.Atoi(strings.TrimSpace(v.AsString()))
		if err != nil {
			return nil, nil
		}
		n = parsed
	default:
		return nil, nil
	}
	if n <= 0 {
		return nil, NewImageError(ImageInvalidSize, fmt.Sprintf("%s must be positive, got %d", names[0], n))
	}
	return &n, nil
}

func floatOption(obj *Object, names ...string) *float64 {
	v, ok := objGetFold(obj, names...)
	if !ok {
		return nil
	}
	switch v.Kind() {
	case IntValue, FloatValue:
		f := v.AsFloat()
		return &f
	case StringValue:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.AsString()), 64); err == nil {
			return &f
		}
	}
	return nil
}

func boolOption(obj *Object, names ...string) *bool {
	v, ok := objGetFold(obj, names...)
	if !ok {
		return nil
	}
	var b bool
	if v.Kind() == BoolValue {
		b = v.AsBool()
	} else {
		b = v.IsTruthy()
	}
	return &b
}

// resolveImageSize computes the target pixel dimensions from the explicit
// options, the intrinsic size and the configured default edge length.
func resolveImageSize(o imageSizeOptions, intrinsic *ImageSize, defaultSize int) (int, int, error) {
	keepAspect := o.scale != nil || o.maxWidth != nil || o.maxHeight != nil ||
		(o.width != nil) != (o.height != nil)
	if o.preserveAspect != nil {
		keepAspect = *o.preserveAspect
	}

	known := intrinsic != nil && intrinsic.Width > 0 && intrinsic.Height > 0

	var w, h int
	switch {
	case o.width != nil && o.height != nil:
		if keepAspect && known {
			w, h = fitIntoBox(*intrinsic, ImageSize{Width: *o.width, Height: *o.height}, true)
		} else {
			w, h = *o.width, *o.height
		}
	case o.width != nil:
		w = *o.width
		switch {
		case keepAspect && known:
			h = roundHalfAway(float64(intrinsic.Height) * float64(w) / float64(intrinsic.Width))
		case known:
			h = intrinsic.Height
		default:
			h = defaultSize
		}
	case o.height != nil:
		h = *o.height
		switch {
		case keepAspect && known:
			w = roundHalfAway(float64(intrinsic.Width) * float64(h) / float64(intrinsic.Height))
		case known:
			w = intrinsic.Width
		default:
			w = defaultSize
		}
	default:
		if known {
			w, h = intrinsic.Width, intrinsic.Height
		} else {
			w, h = defaultSize, defaultSize
		}
	}

	if o.scale != nil {
		w = atLeastOne(roundHalfAway(float64(w) * *o.scale))
		h = atLeastOne(roundHalfAway(float64(h) * *o.scale))
	}

	if o.maxWidth != nil || o.maxHeight != nil {
		if keepAspect {
			ratio := 1.0
			if o.maxWidth != nil {
				ratio = math.Min(ratio, float64(*o.maxWidth)/float64(w))
			}
			if o.maxHeight != nil {
				ratio = math.Min(ratio, float64(*o.maxHeight)/float64(h))
			}
			w = atLeastOne(roundHalfAway(float64(w) * ratio))
			h = atLeastOne(roundHalfAway(float64(h) * ratio))
		} else {
			if o.maxWidth != nil && w > *o.maxWidth {
				w = *o.maxWidth
			}
			if o.maxHeight != nil && h > *o.maxHeight {
				h = *o.maxHeight
			}
		}
	}

	if w <= 0 || h <= 0 {
		return 0, 0, NewImageError(ImageInvalidSize, fmt.Sprintf("resolved image size %dx%d is not positive", w, h))
	}
	return w, h, nil
}

// fitIntoBox scales src proportionally to fit the box, flooring each
// dimension to one pixel
func fitIntoBox(src, box ImageSize, allowUpscale bool) (int, int) {
	r := math.Min(float64(box.Width)/float64(src.Width), float64(box.Height)/float64(src.Height))
	if !allowUpscale && r > 1 {
		r = 1
	}
	return atLeastOne(roundHalfAway(float64(src.Width) * r)),
		atLeastOne(roundHalfAway(float64(src.Height) * r))
}

// roundHalfAway rounds half away from zero
func roundHalfAway(x float64) int {
	if x >= 0 {
		return int(math.Floor(x + 0.5))
	}
	return -int(math.Floor(-x + 0.5))
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
