package block

import "fmt"

// BlockID представляет стабильный идентификатор типа блока.
// Значение 0 зарезервировано за воздухом и никогда не регистрируется.
type BlockID uint16

// AirID используется только для сериализации пустых ячеек
const AirID BlockID = 0

// Имена типов, на которые опирается генератор ландшафта
const (
	NameBedrock    = "Bedrock"
	NameStone      = "Stone"
	NameIronOre    = "Iron Ore"
	NameDiamondOre = "Diamond Ore"
	NameDirt       = "Dirt"
	NameGrass      = "Grass"
	NameSand       = "Sand"
	NameWater      = "Water"
)

// FaceCount - количество граней куба (Up, Down, Forward, Back, Left, Right)
const FaceCount = 6

// AtlasCell - координаты ячейки в сетке текстурного атласа
type AtlasCell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Sounds содержит идентификаторы звуковых подсказок для внешнего аудио-слоя
type Sounds struct {
	Dig   string `json:"dig,omitempty"`
	Step  string `json:"step,omitempty"`
	Place string `json:"place,omitempty"`
}

// BlockType описывает неизменяемый тип блока.
// Экземпляры создаются только каталогом и разделяются по указателю.
type BlockType struct {
	ID          BlockID     `json:"id"`
	Name        string      `json:"name"`
	Transparent bool        `json:"transparent,omitempty"`
	Billboard   bool        `json:"billboard,omitempty"`
	Liquid      bool        `json:"liquid,omitempty"`
	Atlas       []AtlasCell `json:"atlas"`
	Sounds      Sounds      `json:"sounds,omitempty"`
	BreakColors []string    `json:"break_colors,omitempty"`
}

// AtlasFor возвращает ячейку атласа для грани face.
// Типы с одной текстурой используют её для всех граней.
func (t *BlockType) AtlasFor(face int) AtlasCell {
	if len(t.Atlas) == 1 {
		return t.Atlas[0]
	}
	return t.Atlas[face]
}

// Opaque сообщает, перекрывает ли блок соседние грани
func (t *BlockType) Opaque() bool {
	return !t.Transparent
}

func (t *BlockType) String() string {
	return fmt.Sprintf("%s(%d)", t.Name, t.ID)
}
