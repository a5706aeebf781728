package game

// Point is a 2D map coordinate. It marshals as {"x":..,"y":..} to match the
// vectors the server sends.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Round is one play unit for one player. Distance, Time and Score are
// computed by the server and treated as opaque here.
type Round struct {
	Location      Point   `json:"location"`
	GuessLocation Point   `json:"guess_location"`
	Distance      float64 `json:"distance"`
	Time          float64 `json:"time"`
	Score         float64 `json:"score"`
	PanoramaID    int     `json:"panorama_id"`
	Finished      bool    `json:"finished"`
	ReadyForNext  bool    `json:"ready_for_next"`
}

// EmptyRounds returns n zero rounds. Round has no reference fields, so every
// element is an independent value.
func EmptyRounds(n int) []Round {
	if n < 0 {
		n = 0
	}
	return make([]Round, n)
}

// Location identifies a panorama offered to CREATE_GAME. Y is height; the
// map plane is X/Z.
type Location struct {
	ID     int     `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Server string  `json:"server,omitempty"`
}

// Point projects l onto the 2D map.
func (l Location) Point() Point {
	return Point{X: l.X, Y: l.Z}
}
