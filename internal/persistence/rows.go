package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talgya/planetsim/internal/civilization"
	"github.com/talgya/planetsim/internal/disaster"
	"github.com/talgya/planetsim/internal/engine"
	"github.com/talgya/planetsim/internal/weather"
	"github.com/talgya/planetsim/internal/world"
)

type cellRow struct {
	Idx          int     `db:"idx"`
	Elevation    float64 `db:"elevation"`
	Temperature  float64 `db:"temperature"`
	Rainfall     float64 `db:"rainfall"`
	Humidity     float64 `db:"humidity"`
	Biomass      float64 `db:"biomass"`
	Oxygen       float64 `db:"oxygen"`
	CO2          float64 `db:"co2"`
	Ice          float64 `db:"ice"`
	Flood        float64 `db:"flood"`
	Greenhouse   float64 `db:"greenhouse"`
	Life         int     `db:"life"`
	Engineered   int     `db:"engineered"`
	GeologyJSON  string  `db:"geology_json"`
	BiomeJSON    string  `db:"biome_json"`
	WeatherJSON  string  `db:"weather_json"`
	MagneticJSON string  `db:"magnetic_json"`
	DepositsJSON string  `db:"deposits_json"`
}

type civRow struct {
	ID              uint64  `db:"id"`
	Name            string  `db:"name"`
	CenterX         int     `db:"center_x"`
	CenterY         int     `db:"center_y"`
	Population      int64   `db:"population"`
	Tech            float64 `db:"tech"`
	Stage           int     `db:"stage"`
	Aggression      float64 `db:"aggression"`
	EcoFriendliness float64 `db:"eco_friendliness"`
	Founded         float64 `db:"founded"`
	CellsJSON       string  `db:"cells_json"`
}

type stormRow struct {
	ID        string  `db:"id"`
	Kind      int     `db:"kind"`
	X         float64 `db:"x"`
	Y         float64 `db:"y"`
	VX        float64 `db:"vx"`
	VY        float64 `db:"vy"`
	Intensity float64 `db:"intensity"`
	Radius    float64 `db:"radius"`
	Age       float64 `db:"age"`
}

type disasterRow struct {
	ID        string  `db:"id"`
	Kind      int     `db:"kind"`
	X         int     `db:"x"`
	Y         int     `db:"y"`
	Intensity float64 `db:"intensity"`
	VX        float64 `db:"vx"`
	VY        float64 `db:"vy"`
	Age       float64 `db:"age"`
}

type eventRow struct {
	Tick        uint64  `db:"tick"`
	Year        float64 `db:"year"`
	Description string  `db:"description"`
	Category    string  `db:"category"`
	MetaJSON    string  `db:"meta_json"`
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// mustJSON encodes v, storing null for values JSON cannot represent (NaN).
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Warn("encode failed, storing null", "type", fmt.Sprintf("%T", v), "error", err)
		return "null"
	}
	return string(b)
}

func saveCells(tx *sqlx.Tx, cp *engine.Checkpoint) error {
	stmt, err := tx.PrepareNamed(`INSERT INTO cells
		(idx, elevation, temperature, rainfall, humidity, biomass, oxygen, co2, ice, flood,
		 greenhouse, life, engineered, geology_json, biome_json, weather_json, magnetic_json, deposits_json)
		VALUES (:idx, :elevation, :temperature, :rainfall, :humidity, :biomass, :oxygen, :co2, :ice, :flood,
		 :greenhouse, :life, :engineered, :geology_json, :biome_json, :weather_json, :magnetic_json, :deposits_json)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range cp.Cells {
		row := cellRow{
			Idx:          i,
			Elevation:    c.Elevation,
			Temperature:  c.Temperature,
			Rainfall:     c.Rainfall,
			Humidity:     c.Humidity,
			Biomass:      c.Biomass,
			Oxygen:       c.Oxygen,
			CO2:          c.CO2,
			Ice:          c.Ice,
			Flood:        c.Flood,
			Greenhouse:   c.Greenhouse,
			Life:         int(c.Life),
			Engineered:   boolInt(c.Engineered),
			GeologyJSON:  mustJSON(c.Geology),
			BiomeJSON:    mustJSON(c.Biome),
			WeatherJSON:  mustJSON(c.Weather),
			MagneticJSON: mustJSON(c.Magnetic),
			DepositsJSON: mustJSON(c.Deposits),
		}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert cell %d: %w", i, err)
		}
	}
	return nil
}

func (db *DB) loadCells(cp *engine.Checkpoint) error {
	var rows []cellRow
	if err := db.conn.Select(&rows, "SELECT * FROM cells ORDER BY idx"); err != nil {
		return err
	}
	if want := cp.Options.Width * cp.Options.Height; len(rows) != want {
		return fmt.Errorf("found %d cells, want %d", len(rows), want)
	}
	cp.Cells = make([]world.CellState, len(rows))
	for k, r := range rows {
		if r.Idx != k {
			return fmt.Errorf("cell index gap at %d", k)
		}
		c := world.CellState{
			Elevation:   r.Elevation,
			Temperature: r.Temperature,
			Rainfall:    r.Rainfall,
			Humidity:    r.Humidity,
			Biomass:     r.Biomass,
			Oxygen:      r.Oxygen,
			CO2:         r.CO2,
			Ice:         r.Ice,
			Flood:       r.Flood,
			Greenhouse:  r.Greenhouse,
			Life:        world.LifeForm(r.Life),
			Engineered:  r.Engineered != 0,
		}
		for dst, raw := range map[any]string{
			&c.Geology:  r.GeologyJSON,
			&c.Biome:    r.BiomeJSON,
			&c.Weather:  r.WeatherJSON,
			&c.Magnetic: r.MagneticJSON,
			&c.Deposits: r.DepositsJSON,
		} {
			if err := json.Unmarshal([]byte(raw), dst); err != nil {
				return fmt.Errorf("cell %d: %w", k, err)
			}
		}
		cp.Cells[k] = c
	}
	return nil
}

func saveCivilizations(tx *sqlx.Tx, cp *engine.Checkpoint) error {
	for _, c := range cp.Civilizations {
		_, err := tx.NamedExec(`INSERT INTO civilizations
			(id, name, center_x, center_y, population, tech, stage, aggression,
			 eco_friendliness, founded, cells_json)
			VALUES (:id, :name, :center_x, :center_y, :population, :tech, :stage, :aggression,
			 :eco_friendliness, :founded, :cells_json)`,
			civRow{
				ID:              c.ID,
				Name:            c.Name,
				CenterX:         c.CenterX,
				CenterY:         c.CenterY,
				Population:      c.Population,
				Tech:            c.Tech,
				Stage:           int(c.Stage),
				Aggression:      c.Aggression,
				EcoFriendliness: c.EcoFriendliness,
				Founded:         c.Founded,
				CellsJSON:       mustJSON(c.Cells),
			})
		if err != nil {
			return fmt.Errorf("insert civilization %d: %w", c.ID, err)
		}
	}
	return nil
}

func (db *DB) loadCivilizations(cp *engine.Checkpoint) error {
	var rows []civRow
	if err := db.conn.Select(&rows, "SELECT * FROM civilizations ORDER BY id"); err != nil {
		return err
	}
	cp.Civilizations = make([]engine.CivilizationState, 0, len(rows))
	for _, r := range rows {
		var cells []int
		if err := json.Unmarshal([]byte(r.CellsJSON), &cells); err != nil {
			return fmt.Errorf("civilization %d cells: %w", r.ID, err)
		}
		cp.Civilizations = append(cp.Civilizations, engine.CivilizationState{
			Civilization: civilization.Civilization{
				ID:              r.ID,
				Name:            r.Name,
				CenterX:         r.CenterX,
				CenterY:         r.CenterY,
				Population:      r.Population,
				Tech:            r.Tech,
				Stage:           civilization.Stage(r.Stage),
				Aggression:      r.Aggression,
				EcoFriendliness: r.EcoFriendliness,
				Founded:         r.Founded,
			},
			Cells: cells,
		})
	}
	return nil
}

func saveStorms(tx *sqlx.Tx, cp *engine.Checkpoint) error {
	for _, st := range cp.Storms {
		_, err := tx.NamedExec(`INSERT INTO storms (id, kind, x, y, vx, vy, intensity, radius, age)
			VALUES (:id, :kind, :x, :y, :vx, :vy, :intensity, :radius, :age)`,
			stormRow{
				ID:        st.ID.String(),
				Kind:      int(st.Kind),
				X:         st.X,
				Y:         st.Y,
				VX:        st.VX,
				VY:        st.VY,
				Intensity: st.Intensity,
				Radius:    st.Radius,
				Age:       st.Age,
			})
		if err != nil {
			return fmt.Errorf("insert storm %s: %w", st.ID, err)
		}
	}
	return nil
}

func (db *DB) loadStorms(cp *engine.Checkpoint) error {
	var rows []stormRow
	if err := db.conn.Select(&rows, "SELECT * FROM storms ORDER BY rowid"); err != nil {
		return err
	}
	cp.Storms = make([]weather.Storm, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return fmt.Errorf("storm id %q: %w", r.ID, err)
		}
		cp.Storms = append(cp.Storms, weather.Storm{
			ID:        id,
			Kind:      weather.StormKind(r.Kind),
			X:         r.X,
			Y:         r.Y,
			VX:        r.VX,
			VY:        r.VY,
			Intensity: r.Intensity,
			Radius:    r.Radius,
			Age:       r.Age,
		})
	}
	return nil
}

func saveDisasters(tx *sqlx.Tx, cp *engine.Checkpoint) error {
	for _, e := range cp.Disasters {
		_, err := tx.NamedExec(`INSERT INTO disasters (id, kind, x, y, intensity, vx, vy, age)
			VALUES (:id, :kind, :x, :y, :intensity, :vx, :vy, :age)`,
			disasterRow{
				ID:        e.ID.String(),
				Kind:      int(e.Kind),
				X:         e.X,
				Y:         e.Y,
				Intensity: e.Intensity,
				VX:        e.VX,
				VY:        e.VY,
				Age:       e.Age,
			})
		if err != nil {
			return fmt.Errorf("insert disaster %s: %w", e.ID, err)
		}
	}
	return nil
}

func (db *DB) loadDisasters(cp *engine.Checkpoint) error {
	var rows []disasterRow
	if err := db.conn.Select(&rows, "SELECT * FROM disasters ORDER BY rowid"); err != nil {
		return err
	}
	cp.Disasters = make([]disaster.Event, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return fmt.Errorf("disaster id %q: %w", r.ID, err)
		}
		cp.Disasters = append(cp.Disasters, disaster.Event{
			ID:        id,
			Kind:      disaster.Kind(r.Kind),
			X:         r.X,
			Y:         r.Y,
			Intensity: r.Intensity,
			VX:        r.VX,
			VY:        r.VY,
			Age:       r.Age,
		})
	}
	return nil
}

func saveEvents(tx *sqlx.Tx, events []engine.Event) error {
	for _, e := range events {
		meta := ""
		if len(e.Meta) > 0 {
			meta = mustJSON(e.Meta)
		}
		_, err := tx.Exec(
			"INSERT INTO events (tick, year, description, category, meta_json) VALUES (?, ?, ?, ?, ?)",
			e.Tick, e.Year, e.Description, e.Category, meta,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) loadEvents() ([]engine.Event, error) {
	var rows []eventRow
	if err := db.conn.Select(&rows, "SELECT tick, year, description, category, meta_json FROM events ORDER BY id"); err != nil {
		return nil, err
	}
	return eventsFromRows(rows), nil
}

func eventsFromRows(rows []eventRow) []engine.Event {
	events := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		e := engine.Event{Tick: r.Tick, Year: r.Year, Description: r.Description, Category: r.Category}
		if r.MetaJSON != "" {
			// A corrupt blob only loses the annotation.
			if err := json.Unmarshal([]byte(r.MetaJSON), &e.Meta); err != nil {
				slog.Warn("event meta unreadable", "tick", r.Tick, "category", r.Category, "error", err)
				e.Meta = nil
			}
		}
		events = append(events, e)
	}
	return events
}
