package main

import "testing"

func TestValidateDeviceID(t *testing.T) {
	valid := []string{
		"1234567890ABCDEF",
		"emulator-5554",
		"192.168.1.100:5555",
		"adb-RF8M33ABCDE-xYz123._adb-tls-connect._tcp.",
	}
	for _, id := range valid {
		if err := ValidateDeviceID(id); err != nil {
			t.Errorf("ValidateDeviceID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{
		"",
		"serial; rm -rf /",
		"serial$(whoami)",
		"serial`id`",
		"serial|cat",
		"serial with spaces",
	}
	for _, id := range invalid {
		if err := ValidateDeviceID(id); err == nil {
			t.Errorf("ValidateDeviceID(%q) = nil, want error", id)
		}
	}
}

func TestParseDeviceList(t *testing.T) {
	output := `List of devices attached
emulator-5554          device product:sdk_gphone64_x86_64 model:sdk_gphone64_x86_64 device:emu64xa transport_id:1
RF8M33ABCDE            device usb:1-4 product:a52sxq model:SM_A528B device:a52sxq transport_id:2
192.168.1.100:5555     offline transport_id:3
0123456789             unauthorized

`
	devices := parseDeviceList(output)
	if len(devices) != 4 {
		t.Fatalf("got %d devices, want 4", len(devices))
	}

	if devices[0].Serial != "emulator-5554" || devices[0].State != "device" {
		t.Errorf("device 0 = %+v", devices[0])
	}
	if devices[0].Model != "sdk_gphone64_x86_64" {
		t.Errorf("device 0 model = %q", devices[0].Model)
	}
	if devices[1].Model != "SM_A528B" || devices[1].Product != "a52sxq" {
		t.Errorf("device 1 = %+v", devices[1])
	}
	if devices[2].State != "offline" {
		t.Errorf("device 2 state = %q", devices[2].State)
	}
	if devices[3].State != "unauthorized" || devices[3].Model != "" {
		t.Errorf("device 3 = %+v", devices[3])
	}
}

func TestParseDeviceListEmpty(t *testing.T) {
	devices := parseDeviceList("List of devices attached\n\n")
	if len(devices) != 0 {
		t.Errorf("got %d devices, want 0", len(devices))
	}
}

func TestParseDfOutput(t *testing.T) {
	output := `Filesystem     1K-blocks    Used Available Use% Mounted on
/dev/block/dm-5 57016560 21400188  35481988  38% /data
`
	total, free, ok := parseDfOutput(output)
	if !ok {
		t.Fatal("parseDfOutput failed")
	}
	if total != 57016560/1024 {
		t.Errorf("total = %d, want %d", total, int64(57016560/1024))
	}
	if free != 35481988/1024 {
		t.Errorf("free = %d, want %d", free, int64(35481988/1024))
	}
}

func TestParseDfOutputMalformed(t *testing.T) {
	for _, output := range []string{"", "Filesystem 1K-blocks", "header\na b c"} {
		if _, _, ok := parseDfOutput(output); ok {
			t.Errorf("parseDfOutput(%q) succeeded, want failure", output)
		}
	}
}
