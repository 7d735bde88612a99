package rsrc

import (
	"bytes"
	"testing"
)

func buildSampleTree() *Entry {
	root := NewDirectory()
	rtIcon := NewIDDirectory(3)
	icon1 := NewNamedDirectory("ICON_MAIN")
	lang := NewIDData(0x409, []byte{0xDE, 0xAD, 0xBE, 0xEF}, 1200)

	_ = icon1.AddChild(lang)
	_ = rtIcon.AddChild(icon1)
	_ = root.AddChild(rtIcon)

	return root
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	root := buildSampleTree()

	encoded, err := Encode(root, EmitOrderInsertion)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(encoded, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	rtIcon, ok := decoded.IDChild(3)
	if !ok {
		t.Fatal("expected id-keyed child 3")
	}

	icon1, ok := rtIcon.NamedChild("ICON_MAIN")
	if !ok {
		t.Fatal("expected named child ICON_MAIN")
	}

	lang, ok := icon1.IDChild(0x409)
	if !ok {
		t.Fatal("expected language id 0x409")
	}

	if !bytes.Equal(lang.Data, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Fatalf("payload = %x, want deadbeef", lang.Data)
	}

	if lang.DataCodepage != 1200 {
		t.Fatalf("codepage = %d, want 1200", lang.DataCodepage)
	}
}

func TestEncodeDecodeRoundTripAtNonZeroVA(t *testing.T) {
	root := buildSampleTree()

	encoded, err := Encode(root, EmitOrderInsertion)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	const va = 0x9000
	if err := Shift(encoded, va); err != nil {
		t.Fatalf("Shift: %v", err)
	}

	decoded, err := Decode(encoded, va)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	rtIcon, _ := decoded.IDChild(3)
	icon1, _ := rtIcon.NamedChild("ICON_MAIN")
	lang, ok := icon1.IDChild(0x409)
	if !ok {
		t.Fatal("expected language id 0x409 after shift round trip")
	}

	if !bytes.Equal(lang.Data, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Fatalf("payload = %x after shift round trip", lang.Data)
	}
}

func TestShiftIsItsOwnInverse(t *testing.T) {
	root := buildSampleTree()

	encoded, err := Encode(root, EmitOrderInsertion)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	original := append([]byte(nil), encoded...)

	if err := Shift(encoded, 0x4000); err != nil {
		t.Fatalf("Shift +delta: %v", err)
	}

	if err := Shift(encoded, -0x4000); err != nil {
		t.Fatalf("Shift -delta: %v", err)
	}

	if !bytes.Equal(encoded, original) {
		t.Fatal("shift by delta then -delta did not restore the original bytes")
	}
}

func TestEncodeRejectsDirectoryWithData(t *testing.T) {
	root := NewDirectory()
	bad := NewIDDirectory(1)
	bad.Data = []byte{1}

	if err := root.AddChild(bad); err != nil {
		t.Fatalf("AddChild: %v", err)
	}

	if _, err := Encode(root, EmitOrderInsertion); err == nil {
		t.Fatal("expected an error encoding a directory with data")
	}
}

func TestEncodeRejectsEmptyNonRootDirectory(t *testing.T) {
	root := NewDirectory()
	empty := NewIDDirectory(1)

	if err := root.AddChild(empty); err != nil {
		t.Fatalf("AddChild: %v", err)
	}

	if _, err := Encode(root, EmitOrderInsertion); err == nil {
		t.Fatal("expected an error encoding an empty non-root directory")
	}
}

func TestEncodeOrderInsertionVsSpec(t *testing.T) {
	root := NewDirectory()
	_ = root.AddChild(NewNamedData("zeta", []byte{1}, 0))
	_ = root.AddChild(NewNamedData("alpha", []byte{2}, 0))
	_ = root.AddChild(NewIDData(5, []byte{3}, 0))
	_ = root.AddChild(NewIDData(1, []byte{4}, 0))

	insertion := reorder(root.children, EmitOrderInsertion)
	wantInsertion := []string{"zeta", "alpha"}

	for i, name := range wantInsertion {
		if !insertion[i].named || insertion[i].Name != name {
			t.Fatalf("insertion order[%d] = %+v, want name %q", i, insertion[i], name)
		}
	}

	specOrder := reorder(root.children, EmitOrderSpec)
	wantSpec := []string{"alpha", "zeta"}

	for i, name := range wantSpec {
		if !specOrder[i].named || specOrder[i].Name != name {
			t.Fatalf("spec order[%d] = %+v, want name %q", i, specOrder[i], name)
		}
	}

	if specOrder[2].ID != 1 || specOrder[3].ID != 5 {
		t.Fatalf("spec order ids = [%d, %d], want [1, 5]", specOrder[2].ID, specOrder[3].ID)
	}
}
