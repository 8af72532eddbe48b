package startup

import (
	"net/http"
	"testing"

	"github.com/gorilla/mux"

	"media-catalog/internal/logging"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/upload", func(http.ResponseWriter, *http.Request) {}).Methods("POST").Name("upload")
	router.HandleFunc("/api/items/{id}", func(http.ResponseWriter, *http.Request) {}).Methods("GET", "DELETE")
	router.HandleFunc("/livez", func(http.ResponseWriter, *http.Request) {})

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}
	if len(routes) != 4 {
		t.Fatalf("GetRoutes() returned %d routes, want 4: %+v", len(routes), routes)
	}
	if routes[0].Method != "POST" || routes[0].Path != "/api/upload" || routes[0].Name != "upload" {
		t.Errorf("routes[0] = %+v", routes[0])
	}
	if routes[3].Method != "*" {
		t.Errorf("route without methods = %+v, want method *", routes[3])
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/items/{id}", "api/items"},
		{"/api/stats", "api/stats"},
		{"/livez", "livez"},
		{"/", ""},
	}
	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestLogHTTPRoutes_Debug(t *testing.T) {
	prev := logging.GetLevel()
	logging.SetLevel(logging.LevelDebug)
	defer logging.SetLevel(prev)

	router := mux.NewRouter()
	router.HandleFunc("/", func(http.ResponseWriter, *http.Request) {})
	router.HandleFunc("/api/sweep", func(http.ResponseWriter, *http.Request) {}).Methods("POST")

	// Walks and groups the table; the root group must not panic on an empty segment.
	LogHTTPRoutes(router, false)
}
