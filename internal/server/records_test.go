package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPolygon = `"POLYGON ((114 -21, 115 -21, 115 -22, 114 -21))"`

// create POSTs body to path, requires a 201 and returns the new id.
func (s *testServer) create(t *testing.T, path, body string) int64 {
	t.Helper()
	resp, data := s.do(t, http.MethodPost, path, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "%s: %s", path, data)
	id, ok := decodeJSON(t, data)["id"].(float64)
	require.True(t, ok, "no id in %s", data)
	return int64(id)
}

func errorDetails(t *testing.T, data []byte) map[string]any {
	t.Helper()
	e, ok := decodeJSON(t, data)["error"].(map[string]any)
	require.True(t, ok, "missing error envelope: %s", data)
	details, _ := e["details"].(map[string]any)
	return details
}

// seedFieldEncounter creates a user and a field encounter owned by them.
func seedFieldEncounter(t *testing.T, s *testServer) int64 {
	t.Helper()
	user := s.create(t, "/api/v1/users", `{"username":"ranger"}`)
	return s.create(t, "/api/v1/encounters", fmt.Sprintf(
		`{"where":"POINT (114.1 -21.8)","when":"2024-01-10T10:00:00Z","source":"odk","source_id":"nest-1","observer":%d,"reporter":%d}`,
		user, user))
}

func TestTaxonAreaRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	user := s.create(t, "/api/v1/users", `{"username":"botanist"}`)
	s.create(t, "/api/v1/taxon", `{"name_id":101,"rank":190,"name":"alba","publication_status":2,"current":true}`)
	typeID := s.create(t, "/api/v1/lookup/encounter_type", `{"code":"survey","label":"Survey"}`)

	body := func(extra string) string {
		return `{"code":"A1","name":"Granite outcrop","geom":` + testPolygon + `,"taxon":101` + extra + `}`
	}

	resp, data := s.do(t, http.MethodPost, "/api/v1/occ-taxon-areas", body(`,"encounter_type":"survey"`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
	assert.Equal(t, "BAD_REQUEST", errorCode(t, data))
	assert.Contains(t, errorDetails(t, data), "encountered_by")

	resp, data = s.do(t, http.MethodPost, "/api/v1/occ-taxon-areas",
		body(fmt.Sprintf(`,"encountered_by":%d,"encounter_type":"nope"`, user)))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))

	tests := []struct {
		name          string
		encounterType string
	}{
		{"by id", jsonNumber(typeID)},
		{"by code", `"survey"`},
	}
	var ids []int64
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := s.do(t, http.MethodPost, "/api/v1/occ-taxon-areas",
				body(fmt.Sprintf(`,"source":1,"encountered_by":%d,"encounter_type":%s`, user, tt.encounterType)))
			require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
			feature := decodeJSON(t, data)
			assert.Equal(t, "Feature", feature["type"])
			props := feature["properties"].(map[string]any)
			assert.Equal(t, "survey", props["encounter_type"])
			assert.EqualValues(t, 101, props["taxon"])
			ids = append(ids, int64(feature["id"].(float64)))
		})
	}
	require.Len(t, ids, 2)

	path := "/api/v1/occ-taxon-areas/" + jsonNumber(ids[0])
	resp, data = s.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	feature := decodeJSON(t, data)
	assert.Equal(t, "Feature", feature["type"])
	assert.EqualValues(t, ids[0], feature["id"])
	assert.Equal(t, "Polygon", feature["geometry"].(map[string]any)["type"])
	props := feature["properties"].(map[string]any)
	assert.Equal(t, "A1", props["code"])
	assert.EqualValues(t, user, props["encountered_by"])

	// The same id under another kind does not exist.
	resp, _ = s.do(t, http.MethodGet, "/api/v1/occ-community-areas/"+jsonNumber(ids[0]), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data = s.do(t, http.MethodGet, "/api/v1/occ-taxon-areas?taxon=101", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.EqualValues(t, 2, decodeJSON(t, data)["count"])
}

func TestOccurrenceObservationBulkCreate(t *testing.T) {
	s := newTestServer(t, nil)
	user := s.create(t, "/api/v1/users", `{"username":"botanist"}`)
	s.create(t, "/api/v1/taxon", `{"name_id":101,"rank":190,"name":"alba","publication_status":2,"current":true}`)
	s.create(t, "/api/v1/lookup/encounter_type", `{"code":"survey","label":"Survey"}`)
	area := s.create(t, "/api/v1/occ-taxon-areas", fmt.Sprintf(
		`{"geom":%s,"taxon":101,"source":1,"encountered_by":%d,"encounter_type":"survey"}`, testPolygon, user))

	bad := fmt.Sprintf(`[{"encounter":%d,"no_alive_mature":3},{"encounter":%d,"no_alive_mature":-1}]`, area, area)
	resp, data := s.do(t, http.MethodPost, "/api/v1/occ-observation/bulk-create?obstype=PlantCount", bad)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
	assert.Contains(t, errorDetails(t, data), "[1].no_alive_mature")

	resp, data = s.do(t, http.MethodGet, "/api/v1/occ-observation", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, decodeJSON(t, data)["count"])

	good := fmt.Sprintf(`[{"encounter":%d,"no_alive_mature":3},{"encounter":%d,"no_alive_mature":5}]`, area, area)
	resp, data = s.do(t, http.MethodPost, "/api/v1/occ-observation/bulk-create?obstype=PlantCount", good)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	assert.JSONEq(t, `{"created_count":2}`, string(data))

	resp, data = s.do(t, http.MethodGet, "/api/v1/occ-observation?obstype=PlantCount", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decodeJSON(t, data)
	assert.EqualValues(t, 2, page["count"])
	first := page["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "PlantCount", first["obstype"])
	assert.Equal(t, float64(1), first["source"])
}

func TestFieldObservationRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	encounter := seedFieldEncounter(t, s)

	t.Run("bulk create", func(t *testing.T) {
		bad := fmt.Sprintf(`[{"encounter":%d,"body_weight_g":21.5},{"encounter":%d,"body_weight_g":-3}]`, encounter, encounter)
		resp, data := s.do(t, http.MethodPost, "/api/v1/observations/bulk-create?obstype=HatchlingMorphometric", bad)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
		assert.Contains(t, errorDetails(t, data), "[1].body_weight_g")

		resp, data = s.do(t, http.MethodPost, "/api/v1/observations/bulk-create", `[]`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))

		good := fmt.Sprintf(`[{"encounter":%d,"body_weight_g":21.5},{"encounter":%d,"body_weight_g":19}]`, encounter, encounter)
		resp, data = s.do(t, http.MethodPost, "/api/v1/observations/bulk-create?obstype=HatchlingMorphometric", good)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
		assert.JSONEq(t, `{"created_count":2}`, string(data))
	})

	t.Run("identical observation", func(t *testing.T) {
		body := fmt.Sprintf(`{"encounter":%d,"management_actions":"fenced"}`, encounter)
		resp, data := s.do(t, http.MethodPost, "/api/v1/observations?obstype=ManagementAction", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
		first := decodeJSON(t, data)
		assert.Equal(t, "odk", first["source"])

		resp, data = s.do(t, http.MethodPost, "/api/v1/observations?obstype=ManagementAction", body)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		assert.Equal(t, first["id"], decodeJSON(t, data)["id"])

		other := fmt.Sprintf(`{"encounter":%d,"management_actions":"relocated"}`, encounter)
		resp, data = s.do(t, http.MethodPost, "/api/v1/observations?obstype=ManagementAction", other)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
		assert.NotEqual(t, first["id"], decodeJSON(t, data)["id"])
	})
}

func TestEncounterTransitionRoute(t *testing.T) {
	s := newTestServer(t, nil)
	encounter := seedFieldEncounter(t, s)
	path := "/api/v1/encounters/" + jsonNumber(encounter) + "/transition"

	resp, data := s.do(t, http.MethodPost, path, `{"status":"curated"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(data))
	assert.Equal(t, "CONFLICT", errorCode(t, data))

	resp, data = s.do(t, http.MethodPost, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))

	resp, data = s.do(t, http.MethodPost, path, `{"status":"proofread"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "proofread", decodeJSON(t, data)["status"])

	resp, data = s.do(t, http.MethodGet, "/api/v1/encounters/"+jsonNumber(encounter), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "proofread", decodeJSON(t, data)["status"])

	resp, _ = s.do(t, http.MethodPost, "/api/v1/encounters/999/transition", `{"status":"proofread"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListingTransitionRoute(t *testing.T) {
	s := newTestServer(t, nil)
	list := s.create(t, "/api/v1/conservationlist",
		`{"code":"WAWCA","approval_level":10,"scope_wa":true,"scope_species":true}`)
	category := s.create(t, "/api/v1/conservationcategory",
		fmt.Sprintf(`{"conservation_list":%d,"code":"CR","rank":1,"threatened":true}`, list))
	s.create(t, "/api/v1/taxon", `{"name_id":101,"rank":190,"name":"alba","publication_status":2,"current":true}`)

	// New listings enter the workflow; they cannot skip the panel review.
	resp, data := s.do(t, http.MethodPost, "/api/v1/taxonconservationlisting",
		fmt.Sprintf(`{"taxon":101,"category":[%d],"status":70}`, category))
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(data))
	resp, data = s.do(t, http.MethodPost, "/api/v1/taxonconservationlisting", `{"taxon":101,"status":70}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(data))

	listing := s.create(t, "/api/v1/taxonconservationlisting",
		fmt.Sprintf(`{"taxon":101,"category":[%d]}`, category))
	path := "/api/v1/taxonconservationlisting/" + jsonNumber(listing) + "/transition"

	resp, data = s.do(t, http.MethodPost, path, `{"status":70}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(data))
	assert.Equal(t, "CONFLICT", errorCode(t, data))

	resp, data = s.do(t, http.MethodPost, path, `{"status":20}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	resp, data = s.do(t, http.MethodPost, path, `{"status":70}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.EqualValues(t, 70, decodeJSON(t, data)["status"])

	resp, data = s.do(t, http.MethodGet, "/api/v1/taxon/101/conservation-status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "WAWCA")
}

func TestUpdateFeeds(t *testing.T) {
	s := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ts.URL+"/api/v1/updates/stream", nil)
	require.NoError(t, err)
	stream, err := s.ts.Client().Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(stream.Body)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.ts.URL, "http")+"/api/v1/updates/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return s.srv.SSEBroadcaster().ClientCount() == 1 && s.srv.WSHub().ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	user := s.create(t, "/api/v1/users", `{"username":"listener"}`)
	wantData := fmt.Sprintf(`{"id":"%d","resource":"user"}`, user)

	t.Run("sse", func(t *testing.T) {
		timeout := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream ended before the record event")
				if line != "event: record.created" {
					continue
				}
				for line = range lines {
					if data, ok := strings.CutPrefix(line, "data: "); ok {
						assert.JSONEq(t, wantData, data)
						return
					}
				}
				t.Fatal("stream ended before the event data")
			case <-timeout:
				t.Fatal("no record.created event on the stream")
			}
		}
	})

	t.Run("websocket", func(t *testing.T) {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		for {
			_, raw, err := conn.ReadMessage()
			require.NoError(t, err)
			var msg struct {
				Type string          `json:"type"`
				Data json.RawMessage `json:"data"`
			}
			require.NoError(t, json.Unmarshal(raw, &msg))
			if msg.Type != "record.created" {
				continue
			}
			assert.JSONEq(t, wantData, string(msg.Data))
			return
		}
	})

	cancel()
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return s.srv.SSEBroadcaster().ClientCount() == 0 && s.srv.WSHub().ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
