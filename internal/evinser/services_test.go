package evinser

import (
	"reflect"
	"testing"

	"github.com/StinkyLord/sbom-evinser/internal/model"
)

func TestServiceName(t *testing.T) {
	cases := []struct {
		slice model.ObjectSlice
		want  string
	}{
		{model.ObjectSlice{FullName: "com.acme.PaymentController:handle", FileName: "x.java"}, "com-acme-PaymentController-service"},
		{model.ObjectSlice{FileName: "PaymentController.java"}, "PaymentController-service"},
		{model.ObjectSlice{FileName: "src/main/java/Orders.java"}, "Orders-service"},
		{model.ObjectSlice{FullName: "com.acme.billing-service"}, "com-acme-billing-service"},
	}
	for _, c := range cases {
		if got := ServiceName(&c.slice); got != c.want {
			t.Errorf("ServiceName(%+v) = %q, want %q", c.slice, got, c.want)
		}
	}
}

func TestExtractEndpoints(t *testing.T) {
	cases := []struct {
		lang, code string
		want       []string
	}{
		{"java", `@GetMapping(value = { "/", "/home" })`, []string{"/", "/home"}},
		{"java", `@PostMapping(value = "/issue", consumes = MediaType.APPLICATION_XML_VALUE)`, []string{"/issue"}},
		{"java", `@GetMapping("/token")`, []string{"/token"}},
		{"jar", `@RequestMapping(path = {"/a", "/b"}, method = RequestMethod.GET)`, []string{"/a", "/b"}},
		{"java", `@GetMapping(value = {"/a", "/b")`, []string{"/a"}},
		{"java", `@GetMapping`, nil},
		{"java", `GetMapping("/x")`, nil},
		{"java", `@GetMapping()`, nil},
		{"javascript", `@GetMapping("/token")`, nil},
	}
	for _, c := range cases {
		got := ExtractEndpoints(c.lang, c.code)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("ExtractEndpoints(%q, %q) = %#v, want %#v", c.lang, c.code, got, c.want)
		}
	}
}

func annotationUsage(method string) model.Usage {
	return model.Usage{TargetObj: &model.UsageTarget{Label: model.LabelAnnotation, ResolvedMethod: method}}
}

func TestDetectServices(t *testing.T) {
	slice := &model.ObjectSlice{
		FileName: "PaymentController.java",
		FullName: "com.acme.PaymentController:handle",
		Usages: []model.Usage{
			annotationUsage(`@GetMapping("/pay")`),
			{DefinedBy: &model.UsageTarget{Label: model.LabelAnnotation, ResolvedMethod: `@PostMapping(value = { "/refund", "/pay" })`}},
			// not an annotation
			{TargetObj: &model.UsageTarget{Label: "CALL", ResolvedMethod: `@GetMapping("/ignored")`}},
		},
	}
	services := model.ServicesMap{}
	DetectServices("java", slice, services)

	svc, ok := services["com-acme-PaymentController-service"]
	if !ok {
		t.Fatalf("service not detected: %v", services.Names())
	}
	if got := svc.Endpoints.Sorted(); !reflect.DeepEqual(got, []string{"/pay", "/refund"}) {
		t.Errorf("endpoints = %v", got)
	}
	if svc.Authenticated != nil || svc.XTrustBoundary != nil {
		t.Errorf("unexpected auth flags: %v %v", svc.Authenticated, svc.XTrustBoundary)
	}

	// a later slice for the same service adds endpoints and the auth hint
	more := &model.ObjectSlice{
		FileName: "PaymentController.java",
		FullName: "com.acme.PaymentController:secure",
		Usages:   []model.Usage{annotationUsage(`@PreAuthorize(value = "/admin")`)},
	}
	DetectServices("java", more, services)
	if !svc.Endpoints.Has("/admin") {
		t.Error("endpoint from second slice missing")
	}
	if svc.Authenticated == nil || !*svc.Authenticated || svc.XTrustBoundary == nil || !*svc.XTrustBoundary {
		t.Error("auth hint not recorded")
	}
}

func TestDetectServices_NoEndpointsNoService(t *testing.T) {
	services := model.ServicesMap{}
	DetectServices("java", &model.ObjectSlice{
		FileName: "Config.java",
		Usages:   []model.Usage{annotationUsage(`@Configuration`)},
	}, services)
	DetectServices("python", &model.ObjectSlice{
		FileName: "app.py",
		Usages:   []model.Usage{annotationUsage(`@GetMapping("/x")`)},
	}, services)
	if len(services) != 0 {
		t.Errorf("services = %v, want none", services.Names())
	}
}

func TestDetectServices_AuthBeforeEndpoint(t *testing.T) {
	usages := []model.Usage{
		annotationUsage(`@Authenticated`),
		annotationUsage(`@GetMapping("/x")`),
	}
	for _, order := range [][]model.Usage{usages, {usages[1], usages[0]}} {
		services := model.ServicesMap{}
		DetectServices("java", &model.ObjectSlice{FileName: "A.java", Usages: order}, services)

		svc, ok := services["A-service"]
		if !ok {
			t.Fatalf("service not detected: %v", services.Names())
		}
		if !svc.Endpoints.Has("/x") {
			t.Errorf("endpoints = %v", svc.Endpoints.Sorted())
		}
		if svc.Authenticated == nil || !*svc.Authenticated || svc.XTrustBoundary == nil || !*svc.XTrustBoundary {
			t.Errorf("auth flags not set for usages %v", order)
		}
	}
}

func TestDetectServices_AuthWithoutEndpoints(t *testing.T) {
	services := model.ServicesMap{}
	DetectServices("java", &model.ObjectSlice{
		FileName: "Guard.java",
		Usages:   []model.Usage{annotationUsage(`@PreAuthorize`)},
	}, services)
	if len(services) != 0 {
		t.Errorf("services = %v, want none", services.Names())
	}
}
