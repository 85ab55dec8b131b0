package smbauth

import (
	"errors"
	"fmt"
	"io"
)

const printIndent = 8

// Print writes an indented dump of every value in c. The cursor is restored
// afterwards, including when a malformed value stops the walk.
func Print(w io.Writer, c Codec) error {
	return printIndented(w, c, 0)
}

func printIndented(w io.Writer, c Codec, indent int) error {
	off := c.Offset()
	c.Rewind()
	defer c.SetOffset(off)

	for {
		tag, err := c.PeekTag()
		if errors.Is(err, ErrEndOfData) {
			return nil
		}
		if err != nil {
			return err
		}

		switch classify(tag) {
		case kindOid:
			oid, err := c.GetOid()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%*sOID: %s\n", indent, "", oid)

		case kindGeneralString:
			text, err := c.GetGeneralString()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%*s%q\n", indent, "", text)

		case kindSequence:
			child, err := c.GetSequence()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%*sSEQUENCE:\n", indent, "")
			if err := printIndented(w, child, indent+printIndent); err != nil {
				return err
			}

		case kindConstructed:
			id, child, err := c.GetConstructed()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%*sCONSTRUCTED, id 0x%X:\n", indent, "", id)
			if err := printIndented(w, child, indent+printIndent); err != nil {
				return err
			}

		default:
			id, payload, err := c.GetOpaque()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%*sOTHER: id 0x%X, len %d\n", indent, "", id, len(payload))
		}
	}
}
