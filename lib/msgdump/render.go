// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msgdump

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/bureau-foundation/sns/lib/clock"
	"github.com/bureau-foundation/sns/lib/dispatch"
	"github.com/bureau-foundation/sns/lib/msg"
)

// Options configures a Renderer.
type Options struct {
	// Profile is the colour profile for styled output. The zero value
	// is termenv.TrueColor; pass termenv.Ascii for plain text.
	Profile termenv.Profile

	// Precision is the number of decimal places for reals. Zero means
	// the default of 6.
	Precision int

	// Clock, when set, lets the header line flag expired frames.
	Clock clock.Clock
}

// DetectProfile returns the colour profile to use for output written
// to file: the environment's profile (honouring NO_COLOR and
// CLICOLOR_FORCE) for terminals, termenv.Ascii otherwise.
func DetectProfile(file *os.File) termenv.Profile {
	if !term.IsTerminal(int(file.Fd())) {
		return termenv.Ascii
	}
	return termenv.NewOutput(file).EnvColorProfile()
}

// Renderer renders built-in message types as text.
type Renderer struct {
	precision int
	clock     clock.Clock

	typeStyle    style
	metaStyle    style
	expiredStyle style
	labelStyle   style
}

// style renders a span of text.
type style func(string) string

func plain(text string) string { return text }

func styled(s lipgloss.Style) style {
	return func(text string) string { return s.Render(text) }
}

// New returns a renderer with the given options.
func New(options Options) *Renderer {
	lipRenderer := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(options.Profile))
	// SetColorProfile pins the profile; without it lipgloss re-detects
	// from the environment.
	lipRenderer.SetColorProfile(options.Profile)

	precision := options.Precision
	if precision <= 0 {
		precision = 6
	}
	renderer := &Renderer{
		precision:    precision,
		clock:        options.Clock,
		typeStyle:    plain,
		metaStyle:    plain,
		expiredStyle: plain,
		labelStyle:   plain,
	}
	// Bold is emitted regardless of profile, so ASCII output skips
	// lipgloss entirely.
	if options.Profile != termenv.Ascii {
		renderer.typeStyle = styled(lipRenderer.NewStyle().Bold(true).Foreground(lipgloss.Color("39")))
		renderer.metaStyle = styled(lipRenderer.NewStyle().Foreground(lipgloss.Color("245")))
		renderer.expiredStyle = styled(lipRenderer.NewStyle().Bold(true).Foreground(lipgloss.Color("196")))
		renderer.labelStyle = styled(lipRenderer.NewStyle().Foreground(lipgloss.Color("109")))
	}
	return renderer
}

// Register adds every built-in type to static.
func (r *Renderer) Register(static *dispatch.Static) {
	static.Register("log", dispatch.Entry{Dump: r.DumpLog, Sample: SampleLog})
	static.Register("vector", dispatch.Entry{Dump: r.DumpVector, Sample: SampleVector})
	static.Register("matrix", dispatch.Entry{Dump: r.DumpMatrix, Sample: SampleMatrix})
	static.Register("tf", dispatch.Entry{Dump: r.DumpTF, Sample: SampleTF})
	static.Register("tf_dx", dispatch.Entry{Dump: r.DumpTFDx, Sample: SampleTFDx})
	static.Register("motor_ref", dispatch.Entry{Dump: r.DumpMotorRef, Sample: SampleMotorRef})
	static.Register("motor_state", dispatch.Entry{Dump: r.DumpMotorState, Sample: SampleMotorState})
	static.Register("joystick", dispatch.Entry{Dump: r.DumpJoystick, Sample: SampleJoystick})
}

// TypeNames lists the types Register installs.
func TypeNames() []string {
	return []string{"joystick", "log", "matrix", "motor_ref", "motor_state", "tf", "tf_dx", "vector"}
}

// writeHeader writes the first line of every dump:
//
//	[vector] host/ident pid=12 seq=7 t=1700000000.000000123 valid=1s
func (r *Renderer) writeHeader(b *strings.Builder, typeName string, header msg.Header) {
	b.WriteString(r.typeStyle("[" + typeName + "]"))
	b.WriteByte(' ')
	b.WriteString(ansi.Strip(header.Host))
	b.WriteByte('/')
	b.WriteString(ansi.Strip(header.Ident))
	b.WriteByte(' ')
	b.WriteString(r.metaStyle(fmt.Sprintf("pid=%d seq=%d t=%d.%09d valid=%s",
		header.PID, header.Seq, header.Sec, header.Nsec, header.Validity)))
	if r.clock != nil && header.IsExpired(r.clock.Now()) {
		b.WriteByte(' ')
		b.WriteString(r.expiredStyle("EXPIRED"))
	}
	b.WriteByte('\n')
}

func (r *Renderer) real(value float64) string {
	return strconv.FormatFloat(value, 'f', r.precision, 64)
}

func (r *Renderer) reals(b *strings.Builder, values ...float64) {
	for i, value := range values {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(r.real(value))
	}
}

func (r *Renderer) label(b *strings.Builder, label string) {
	b.WriteString(r.labelStyle(label))
}

func flush(w io.Writer, b *strings.Builder) error {
	_, err := io.WriteString(w, b.String())
	return err
}

// DumpLog renders a log message.
func (r *Renderer) DumpLog(w io.Writer, frame []byte) error {
	m, err := msg.ViewLog(frame)
	if err != nil {
		return err
	}
	var b strings.Builder
	r.writeHeader(&b, "log", m.Header())
	b.WriteString("  ")
	r.label(&b, "priority")
	// Producer text must not drive the terminal.
	fmt.Fprintf(&b, "=%d %s\n", m.Priority(), ansi.Strip(m.Text()))
	return flush(w, &b)
}

// DumpVector renders a vector message.
func (r *Renderer) DumpVector(w io.Writer, frame []byte) error {
	m, err := msg.ViewVector(frame)
	if err != nil {
		return err
	}
	var b strings.Builder
	r.writeHeader(&b, "vector", m.Header())
	b.WriteString("  ")
	r.label(&b, "n")
	fmt.Fprintf(&b, "=%d:", m.Len())
	if m.Len() > 0 {
		b.WriteByte(' ')
		r.reals(&b, m.Elements()...)
	}
	b.WriteByte('\n')
	return flush(w, &b)
}

// DumpMatrix renders a matrix one row per line.
func (r *Renderer) DumpMatrix(w io.Writer, frame []byte) error {
	m, err := msg.ViewMatrix(frame)
	if err != nil {
		return err
	}
	var b strings.Builder
	r.writeHeader(&b, "matrix", m.Header())
	fmt.Fprintf(&b, "  %dx%d\n", m.Rows(), m.Cols())
	if m.Empty() {
		return flush(w, &b)
	}
	row := make([]float64, m.Cols())
	for i := range m.Rows() {
		for j := range row {
			row[j] = m.At(i, j)
		}
		b.WriteString("  ")
		r.reals(&b, row...)
		b.WriteByte('\n')
	}
	return flush(w, &b)
}

func (r *Renderer) writeTF(b *strings.Builder, tf msg.TF) {
	r.label(b, "q")
	b.WriteString("=(")
	r.reals(b, tf.Q[:]...)
	b.WriteString(") ")
	r.label(b, "v")
	b.WriteString("=(")
	r.reals(b, tf.V[:]...)
	b.WriteByte(')')
}

// DumpTF renders one transform per line as quaternion and translation.
func (r *Renderer) DumpTF(w io.Writer, frame []byte) error {
	m, err := msg.ViewTF(frame)
	if err != nil {
		return err
	}
	var b strings.Builder
	r.writeHeader(&b, "tf", m.Header())
	for i := range m.Len() {
		fmt.Fprintf(&b, "  [%d] ", i)
		r.writeTF(&b, m.At(i))
		b.WriteByte('\n')
	}
	return flush(w, &b)
}

// DumpTFDx renders one transform and its derivative per line.
func (r *Renderer) DumpTFDx(w io.Writer, frame []byte) error {
	m, err := msg.ViewTFDx(frame)
	if err != nil {
		return err
	}
	var b strings.Builder
	r.writeHeader(&b, "tf_dx", m.Header())
	for i := range m.Len() {
		element := m.At(i)
		fmt.Fprintf(&b, "  [%d] ", i)
		r.writeTF(&b, element.TF)
		b.WriteByte(' ')
		r.label(&b, "dv")
		b.WriteString("=(")
		r.reals(&b, element.Dv[:]...)
		b.WriteString(") ")
		r.label(&b, "omega")
		b.WriteString("=(")
		r.reals(&b, element.Omega[:]...)
		b.WriteString(")\n")
	}
	return flush(w, &b)
}

// DumpMotorRef renders the mode and the per-joint references.
func (r *Renderer) DumpMotorRef(w io.Writer, frame []byte) error {
	m, err := msg.ViewMotorRef(frame)
	if err != nil {
		return err
	}
	var b strings.Builder
	r.writeHeader(&b, "motor_ref", m.Header())
	b.WriteString("  ")
	r.label(&b, "mode")
	fmt.Fprintf(&b, "=%s n=%d:", m.Mode(), m.Len())
	if m.Len() > 0 {
		b.WriteByte(' ')
		r.reals(&b, m.Elements()...)
	}
	b.WriteByte('\n')
	return flush(w, &b)
}

// DumpMotorState renders the mode and one joint per line.
func (r *Renderer) DumpMotorState(w io.Writer, frame []byte) error {
	m, err := msg.ViewMotorState(frame)
	if err != nil {
		return err
	}
	var b strings.Builder
	r.writeHeader(&b, "motor_state", m.Header())
	b.WriteString("  ")
	r.label(&b, "mode")
	fmt.Fprintf(&b, "=%s n=%d\n", m.Mode(), m.Len())
	for i := range m.Len() {
		joint := m.At(i)
		fmt.Fprintf(&b, "  [%d] ", i)
		r.label(&b, "pos")
		b.WriteString("=" + r.real(joint.Pos) + " ")
		r.label(&b, "vel")
		b.WriteString("=" + r.real(joint.Vel) + "\n")
	}
	return flush(w, &b)
}

// DumpJoystick renders the button bitmask and axis values.
func (r *Renderer) DumpJoystick(w io.Writer, frame []byte) error {
	m, err := msg.ViewJoystick(frame)
	if err != nil {
		return err
	}
	var b strings.Builder
	r.writeHeader(&b, "joystick", m.Header())
	b.WriteString("  ")
	r.label(&b, "buttons")
	fmt.Fprintf(&b, "=%#x ", m.Buttons())
	r.label(&b, "axes")
	b.WriteString("=")
	r.reals(&b, m.Elements()...)
	b.WriteByte('\n')
	return flush(w, &b)
}
