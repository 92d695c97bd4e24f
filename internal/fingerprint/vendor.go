package fingerprint

import (
	"regexp"

	"github.com/0xDexFi/veilcams/internal/domain"
)

// VendorSignature is one immutable record in the vendor registry: the
// patterns that identify a vendor, and the vendor-specific endpoints and
// credentials the downstream modules (fingerprint, credential tester,
// fuzzer) need to target that vendor correctly.
type VendorSignature struct {
	Vendor Vendor

	HeaderRegexes []*regexp.Regexp
	BodyRegexes   []*regexp.Regexp

	// ExistenceProbeURLs are vendor-specific paths that, answered with
	// 2xx/3xx, are enough to pin the vendor even without a header/body
	// match.
	ExistenceProbeURLs []string

	// DeviceInfoURL is probed once a vendor hit is confirmed, to extract
	// model/firmware.
	DeviceInfoURL string

	// LoginEndpoints are vendor-specific login/auth-check endpoints used
	// by the credential tester for form-auth and no-auth-on-root flows.
	LoginEndpoints []string

	// RTSPPaths are vendor-specific stream paths, most likely first.
	RTSPPaths []string

	// SnapshotPaths are vendor-specific still-image endpoints.
	SnapshotPaths []string

	// DefaultCredentials are the vendor's well-known factory defaults,
	// tried before generic defaults.
	DefaultCredentials []domain.Credential
}

// Vendor re-exports domain.Vendor so callers of this package don't need a
// second import for the enum.
type Vendor = domain.Vendor

func mustRegexes(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile("(?i)"+p))
	}
	return out
}

// Registry is the static, ordered vendor signature table. Order matters:
// it is the order in which header/body matching is attempted.
var Registry = []VendorSignature{
	{
		Vendor:             domain.VendorHikvision,
		HeaderRegexes:      mustRegexes(`hikvision`, `app-webs`),
		BodyRegexes:        mustRegexes(`hikvision`, `isapi`),
		ExistenceProbeURLs: []string{"/ISAPI/System/deviceInfo", "/doc/page/login.asp"},
		DeviceInfoURL:      "/ISAPI/System/deviceInfo",
		LoginEndpoints:     []string{"/ISAPI/Security/userCheck", "/ISAPI/Security/sessionLogin"},
		RTSPPaths:          []string{"/Streaming/Channels/101", "/Streaming/Channels/1"},
		SnapshotPaths:      []string{"/ISAPI/Streaming/channels/101/picture"},
		DefaultCredentials: []domain.Credential{{Username: "admin", Password: "12345"}, {Username: "admin", Password: "hiklinux"}},
	},
	{
		Vendor:             domain.VendorDahua,
		HeaderRegexes:      mustRegexes(`dahua`),
		BodyRegexes:        mustRegexes(`dahua`, `dhipcam`),
		ExistenceProbeURLs: []string{"/cgi-bin/magicBox.cgi?action=getDeviceType"},
		DeviceInfoURL:      "/cgi-bin/magicBox.cgi?action=getDeviceType",
		LoginEndpoints:     []string{"/RPC2_Login", "/cgi-bin/magicBox.cgi?action=getSystemInfo"},
		RTSPPaths:          []string{"/cam/realmonitor?channel=1&subtype=0"},
		SnapshotPaths:      []string{"/cgi-bin/snapshot.cgi"},
		DefaultCredentials: []domain.Credential{{Username: "admin", Password: "admin"}, {Username: "admin", Password: ""}},
	},
	{
		Vendor:             domain.VendorAxis,
		HeaderRegexes:      mustRegexes(`axis`),
		BodyRegexes:        mustRegexes(`axis communications`, `axis-cgi`),
		ExistenceProbeURLs: []string{"/axis-cgi/basicdeviceinfo.cgi"},
		DeviceInfoURL:      "/axis-cgi/basicdeviceinfo.cgi",
		LoginEndpoints:     []string{"/axis-cgi/admin/param.cgi?action=check"},
		RTSPPaths:          []string{"/axis-media/media.amp"},
		SnapshotPaths:      []string{"/axis-cgi/jpg/image.cgi"},
		DefaultCredentials: []domain.Credential{{Username: "root", Password: "pass"}},
	},
	{
		Vendor:             domain.VendorReolink,
		HeaderRegexes:      mustRegexes(`reolink`),
		BodyRegexes:        mustRegexes(`reolink`),
		ExistenceProbeURLs: []string{"/api.cgi?cmd=Login"},
		DeviceInfoURL:      "/api.cgi?cmd=GetDevInfo",
		LoginEndpoints:     []string{"/api.cgi?cmd=Login"},
		RTSPPaths:          []string{"/h264Preview_01_main"},
		SnapshotPaths:      []string{"/cgi-bin/api.cgi?cmd=Snap&channel=0"},
		DefaultCredentials: []domain.Credential{{Username: "admin", Password: ""}},
	},
	{
		Vendor:             domain.VendorAmcrest,
		HeaderRegexes:      mustRegexes(`amcrest`),
		BodyRegexes:        mustRegexes(`amcrest`),
		ExistenceProbeURLs: []string{"/cgi-bin/magicBox.cgi?action=getDeviceType"},
		DeviceInfoURL:      "/cgi-bin/magicBox.cgi?action=getDeviceType",
		LoginEndpoints:     []string{"/RPC2_Login"},
		RTSPPaths:          []string{"/cam/realmonitor?channel=1&subtype=0"},
		SnapshotPaths:      []string{"/cgi-bin/snapshot.cgi"},
		DefaultCredentials: []domain.Credential{{Username: "admin", Password: "admin"}},
	},
	{
		Vendor:             domain.VendorFoscam,
		HeaderRegexes:      mustRegexes(`foscam`),
		BodyRegexes:        mustRegexes(`foscam`),
		ExistenceProbeURLs: []string{"/cgi-bin/CGIProxy.fcgi?cmd=getDevInfo"},
		DeviceInfoURL:      "/cgi-bin/CGIProxy.fcgi?cmd=getDevInfo",
		LoginEndpoints:     []string{"/cgi-bin/CGIProxy.fcgi?cmd=logIn"},
		RTSPPaths:          []string{"/videoMain"},
		SnapshotPaths:      []string{"/cgi-bin/CGIProxy.fcgi?cmd=snapPicture2"},
		DefaultCredentials: []domain.Credential{{Username: "admin", Password: ""}},
	},
	{
		Vendor:             domain.VendorTPLink,
		HeaderRegexes:      mustRegexes(`tp-link`, `tplink`),
		BodyRegexes:        mustRegexes(`tp-link`, `tplink`),
		ExistenceProbeURLs: []string{"/stok="},
		LoginEndpoints:     []string{"/stok=/login"},
		RTSPPaths:          []string{"/stream1"},
		SnapshotPaths:      []string{"/snapshot.jpg"},
		DefaultCredentials: []domain.Credential{{Username: "admin", Password: "admin"}},
	},
	{
		Vendor:             domain.VendorUniview,
		HeaderRegexes:      mustRegexes(`uniview`),
		BodyRegexes:        mustRegexes(`uniview`),
		ExistenceProbeURLs: []string{"/LAPI/V1.0/System/DeviceInfo"},
		DeviceInfoURL:      "/LAPI/V1.0/System/DeviceInfo",
		LoginEndpoints:     []string{"/LAPI/V1.0/System/Login"},
		RTSPPaths:          []string{"/media/video1"},
		SnapshotPaths:      []string{"/snapshot"},
		DefaultCredentials: []domain.Credential{{Username: "admin", Password: "123456"}},
	},
	{
		Vendor:             domain.VendorVivotek,
		HeaderRegexes:      mustRegexes(`vivotek`),
		BodyRegexes:        mustRegexes(`vivotek`),
		ExistenceProbeURLs: []string{"/cgi-bin/admin/getparam.cgi"},
		DeviceInfoURL:      "/cgi-bin/admin/getparam.cgi?system_info",
		LoginEndpoints:     []string{"/cgi-bin/admin/getparam.cgi"},
		RTSPPaths:          []string{"/live.sdp"},
		SnapshotPaths:      []string{"/cgi-bin/viewer/video.jpg"},
		DefaultCredentials: []domain.Credential{{Username: "root", Password: ""}},
	},
	{
		Vendor:             domain.VendorHanwha,
		HeaderRegexes:      mustRegexes(`hanwha`, `wisenet`, `samsung techwin`),
		BodyRegexes:        mustRegexes(`hanwha`, `wisenet`),
		ExistenceProbeURLs: []string{"/stw-cgi/system.cgi?msubmenu=deviceinfo&action=view"},
		DeviceInfoURL:      "/stw-cgi/system.cgi?msubmenu=deviceinfo&action=view",
		LoginEndpoints:     []string{"/stw-cgi/security.cgi?msubmenu=session&action=login"},
		RTSPPaths:          []string{"/profile2/media.smp"},
		SnapshotPaths:      []string{"/stw-cgi/video.cgi?msubmenu=snapshot&action=view"},
		DefaultCredentials: []domain.Credential{{Username: "admin", Password: "4321"}},
	},
	{
		Vendor:             domain.VendorBosch,
		HeaderRegexes:      mustRegexes(`bosch`),
		BodyRegexes:        mustRegexes(`bosch`),
		ExistenceProbeURLs: []string{"/rcp.xml"},
		LoginEndpoints:     []string{"/login.htm"},
		RTSPPaths:          []string{"/rtsp_tunnel"},
		SnapshotPaths:      []string{"/snap.jpg"},
		DefaultCredentials: []domain.Credential{{Username: "service", Password: "service"}},
	},
}

// GenericDefaults are vendor-agnostic factory credentials tried whenever
// the vendor is unknown, or appended after a known vendor's own defaults.
var GenericDefaults = []domain.Credential{
	{Username: "admin", Password: "admin"},
	{Username: "admin", Password: "password"},
	{Username: "admin", Password: ""},
	{Username: "root", Password: "root"},
	{Username: "user", Password: "user"},
}

// GenericRTSPPaths are stream paths tried when a vendor is unknown or has
// none of its own.
var GenericRTSPPaths = []string{"/", "/live.sdp", "/stream", "/stream1", "/video", "/h264", "/ch1", "/ch0_0.h264"}

// GenericSnapshotPaths are still-image endpoints tried across vendors.
var GenericSnapshotPaths = []string{"/snapshot.jpg", "/snap.jpg", "/image.jpg", "/cgi-bin/snapshot.cgi"}

// GenericLoginEndpoints are vendor-agnostic form-auth login endpoints.
var GenericLoginEndpoints = []string{"/login", "/login.cgi", "/cgi-bin/login.cgi", "/api/login"}

// ConfigDisclosurePaths are fixed paths the protocol fuzzer probes for
// configuration disclosure.
var ConfigDisclosurePaths = []string{"/config.xml", "/cgi-bin/export_cfg.cgi", "/system.ini", "/backup.cfg", "/device.cfg", "/.env"}

// AdminDebugPaths are fixed paths the protocol fuzzer probes for exposed
// admin/debug surfaces.
var AdminDebugPaths = []string{"/debug", "/console", "/admin", "/cgi-bin/debug.cgi", "/status", "/phpinfo.php"}

// BySignature matches raw header text and body text against the registry,
// in order, first by header regexes then by body regexes across all
// entries. It returns a zero VendorSignature (empty Vendor) and false when
// nothing matches.
func BySignature(headerText, bodyText string) (VendorSignature, bool) {
	for _, sig := range Registry {
		for _, re := range sig.HeaderRegexes {
			if re.MatchString(headerText) {
				return sig, true
			}
		}
	}
	for _, sig := range Registry {
		for _, re := range sig.BodyRegexes {
			if re.MatchString(bodyText) {
				return sig, true
			}
		}
	}
	return VendorSignature{}, false
}

// ByVendor looks up a signature by its vendor enum.
func ByVendor(v domain.Vendor) (VendorSignature, bool) {
	for _, sig := range Registry {
		if sig.Vendor == v {
			return sig, true
		}
	}
	return VendorSignature{}, false
}
