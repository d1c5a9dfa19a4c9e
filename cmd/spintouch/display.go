package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/joyfulhouse/lamotte-spintouch/internal/protocol"
	"github.com/joyfulhouse/lamotte-spintouch/internal/reading"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	warnColor    = color.New(color.FgYellow, color.Bold)
	derivedColor = color.New(color.FgHiBlack)
)

// printReading renders a decoded test result. seriesOverride replaces
// the decoded cartridge series when the user configured one explicitly;
// the series' descriptor then decides how the phosphate/borate pair is
// labeled and which parameters are expected at all.
func printReading(w io.Writer, r *protocol.Reading, seriesOverride string) {
	series := string(r.Series)
	if seriesOverride != "" && seriesOverride != "auto" {
		series = seriesOverride
	}
	desc, _ := protocol.DescriptorFor(protocol.CartridgeSeries(series))

	headerColor.Fprintf(w, "Test result %s\n", r.Timestamp.String())
	fmt.Fprintf(w, "  cartridge: %s   sanitizer: %s   parameters: %d\n",
		series, r.Sanitizer, r.ParamCount())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  PARAMETER\tVALUE\tUNIT\t")
	fmt.Fprintln(tw, "  "+strings.Repeat("-", 40)+"\t\t\t")

	r.EachParam(func(id protocol.ParamID, m protocol.Measurement) {
		name, unit := paramLabel(desc, id)
		value := fmt.Sprintf("%.*f", int(m.Decimals), m.Value)
		if m.OutOfRange {
			value = warnColor.Sprintf("%s !", value)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t\n", name, value, unit)
	})
	tw.Flush()

	if desc != nil {
		var unexpected []string
		r.EachParam(func(id protocol.ParamID, _ protocol.Measurement) {
			if !desc.HasParam(id) {
				name, _ := paramLabel(desc, id)
				unexpected = append(unexpected, name)
			}
		})
		if len(unexpected) > 0 {
			warnColor.Fprintf(w, "  note: %s not documented for a %s cartridge\n",
				strings.Join(unexpected, ", "), series)
		}
	}

	if combined, ok := reading.CombinedSanitizer(r); ok {
		derivedColor.Fprintf(w, "  combined chlorine: %.2f ppm\n", combined)
	}
	if ratio, ok := reading.StabilizerRatio(r); ok {
		derivedColor.Fprintf(w, "  FC/CYA ratio: %.1f%%\n", ratio)
	}

	if hasOutOfRange(r) {
		warnColor.Fprintln(w, "  ! marks values outside the cartridge's measurable range")
	}
}

// paramLabel resolves the display name and unit for a parameter. The
// 0x0D/0x0E identifier pair measures either borate or phosphate
// depending on the inserted disk; the cartridge descriptor's aux
// chemistry decides which label applies.
func paramLabel(desc *protocol.CartridgeDescriptor, id protocol.ParamID) (string, string) {
	if desc != nil && (id == protocol.ParamBorate || id == protocol.ParamPhosphate) {
		auxID := id
		switch desc.Aux {
		case protocol.AuxPhosphate:
			auxID = protocol.ParamPhosphate
		case protocol.AuxBorate:
			auxID = protocol.ParamBorate
		}
		if spec, ok := auxID.Spec(); ok {
			return spec.Name, spec.Unit
		}
	}
	if spec, ok := id.Spec(); ok {
		return spec.Name, spec.Unit
	}
	return id.String(), ""
}

func hasOutOfRange(r *protocol.Reading) bool {
	found := false
	r.EachParam(func(_ protocol.ParamID, m protocol.Measurement) {
		if m.OutOfRange {
			found = true
		}
	})
	return found
}
