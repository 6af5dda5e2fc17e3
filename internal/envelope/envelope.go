// Package envelope implements the self-describing text wrapper applied to
// item payloads before they are handed to the document store. An envelope is
// an ordered sequence of TAG.VALUE pairs terminated by a data tag holding the
// transformed payload, e.g.
//
//	IVD_F.V1.IVD_T.B64.IVD_D.aGVsbG8=
//
// Readers that do not recognize the leading format tag treat the whole string
// as clear text, which keeps old payloads readable after encoding changes.
package envelope

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Separator joins tags and values on the wire.
const Separator = "."

// Wire tags. Compression and encryption are reserved for future layering and
// are not emitted today.
const (
	TagFormat      = "IVD_F"
	TagType        = "IVD_T"
	TagCompression = "IVD_C"
	TagEncryption  = "IVD_E"
	TagData        = "IVD_D"
)

// Format identifies the envelope layout version.
type Format string

const (
	FormatClear Format = "CLEAR"
	FormatV1    Format = "V1"
)

// DefaultFormat is applied when the caller does not choose one.
const DefaultFormat = FormatV1

// Encoding selects the reversible binary-to-text transform applied to the
// payload inside a V1 envelope.
type Encoding string

const (
	EncodingBinary  Encoding = "B"
	EncodingDecimal Encoding = "D"
	EncodingHex     Encoding = "X"
	EncodingASCII   Encoding = "A"
	EncodingBase64  Encoding = "B64"
)

// DefaultEncoding is applied when the caller does not choose one.
const DefaultEncoding = EncodingBase64

// Codec encodes and decodes envelopes with a fixed format and encoding.
// The zero value is not usable; construct with New.
type Codec struct {
	format   Format
	encoding Encoding
}

// New returns a codec using the supplied format and encoding, falling back to
// the defaults when either is empty.
func New(format Format, encoding Encoding) Codec {
	if format == "" {
		format = DefaultFormat
	}
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return Codec{format: format, encoding: encoding}
}

// Default returns a codec producing V1 base64 envelopes.
func Default() Codec { return New(DefaultFormat, DefaultEncoding) }

// Encode wraps payload in an envelope. Clear format returns the payload
// unchanged. Empty payloads encode to the empty string.
func (c Codec) Encode(payload string) (string, error) {
	if c.format == FormatClear {
		return payload, nil
	}
	if payload == "" {
		return "", nil
	}
	body, err := encodeBody([]byte(payload), c.encoding)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	writePair(&b, TagFormat, string(c.format), true)
	writePair(&b, TagType, string(c.encoding), false)
	writePair(&b, TagData, body, false)
	return b.String(), nil
}

// Decode unwraps an envelope produced by Encode. Input without a recognized
// format tag is assumed to be clear text and returned unchanged. Empty input
// decodes to the empty string.
func Decode(data string) (string, error) {
	if data == "" {
		return "", nil
	}
	format, rest, ok := detectTag(data, TagFormat)
	if !ok {
		// Assuming clear data.
		return data, nil
	}
	switch Format(format) {
	case FormatClear:
		return data, nil
	case FormatV1:
		return decodeV1(rest)
	default:
		return data, nil
	}
}

func decodeV1(data string) (string, error) {
	encoding, rest, ok := detectTag(data, TagType)
	if !ok {
		return "", fmt.Errorf("envelope: missing encoding tag")
	}
	body, _, ok := detectTag(rest, TagData)
	if !ok {
		return "", fmt.Errorf("envelope: missing data tag")
	}
	raw, err := decodeBody(body, Encoding(encoding))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func writePair(b *strings.Builder, tag, value string, first bool) {
	if !first {
		b.WriteString(Separator)
	}
	b.WriteString(tag)
	b.WriteString(Separator)
	b.WriteString(value)
}

// detectTag matches tag at the head of data and splits off its value. The
// value of the data tag runs to the end of the string; any other value stops
// at the next separator.
func detectTag(data, tag string) (value, rest string, ok bool) {
	if !strings.HasPrefix(data, tag+Separator) {
		return "", "", false
	}
	data = data[len(tag)+len(Separator):]
	if tag == TagData {
		return data, "", data != ""
	}
	idx := strings.Index(data, Separator)
	if idx <= 0 {
		return data, "", data != ""
	}
	return data[:idx], data[idx+1:], true
}

func encodeBody(raw []byte, enc Encoding) (string, error) {
	switch enc {
	case EncodingBase64:
		return base64.StdEncoding.EncodeToString(raw), nil
	case EncodingHex:
		return hex.EncodeToString(raw), nil
	case EncodingBinary:
		return encodeRadix(raw, 2, 8), nil
	case EncodingDecimal:
		return encodeRadix(raw, 10, 3), nil
	case EncodingASCII:
		return encodeRadix(raw, 10, 3), nil
	default:
		return "", fmt.Errorf("envelope: unknown encoding %q", enc)
	}
}

func decodeBody(body string, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingBase64:
		return base64.StdEncoding.DecodeString(body)
	case EncodingHex:
		return hex.DecodeString(body)
	case EncodingBinary:
		return decodeRadix(body, 2, 8)
	case EncodingDecimal, EncodingASCII:
		return decodeRadix(body, 10, 3)
	default:
		return nil, fmt.Errorf("envelope: unknown encoding %q", enc)
	}
}

// encodeRadix renders each byte as a fixed-width numeral in the given base so
// the transform stays reversible without a separator.
func encodeRadix(raw []byte, base, width int) string {
	var b strings.Builder
	b.Grow(len(raw) * width)
	for _, c := range raw {
		s := strconv.FormatUint(uint64(c), base)
		for len(s) < width {
			s = "0" + s
		}
		b.WriteString(s)
	}
	return b.String()
}

func decodeRadix(body string, base, width int) ([]byte, error) {
	if len(body)%width != 0 {
		return nil, fmt.Errorf("envelope: truncated payload")
	}
	out := make([]byte, 0, len(body)/width)
	for i := 0; i < len(body); i += width {
		v, err := strconv.ParseUint(body[i:i+width], base, 9)
		if err != nil || v > 255 {
			return nil, fmt.Errorf("envelope: invalid payload byte %q", body[i:i+width])
		}
		out = append(out, byte(v))
	}
	return out, nil
}
