package firm

import "math"

// WorkerLabor is the labor produced by workers alone.
func (p Params) WorkerLabor(workers int) float64 {
	return p.LaborPerWorker * float64(workers)
}

// EquipmentLabor is the labor produced by equipment. Each unit needs one
// operator, so idle units beyond the headcount contribute nothing.
func (p Params) EquipmentLabor(workers, equipment int) float64 {
	return float64(min(workers, equipment)) * p.LaborPerEquipment
}

// TotalLabor is worker plus operated-equipment labor.
func (p Params) TotalLabor(workers, equipment int) float64 {
	return p.WorkerLabor(workers) + p.EquipmentLabor(workers, equipment)
}

// LaborCapacity is how many goods the labor can make.
func (p Params) LaborCapacity(labor float64) int {
	if labor <= 0 {
		return 0
	}
	return int(math.Floor(labor / p.LaborCostPerGood))
}

// MaterialCapacity is how many goods the material stock can make.
func (p Params) MaterialCapacity(materials int) int {
	if materials <= 0 || p.MaterialCostPerGood <= 0 {
		return 0
	}
	return materials / p.MaterialCostPerGood
}

// Technology is the production capacity model of a firm kind.
type Technology interface {
	Capacity(p Params, workers, equipment, materials int) int
	UsesMaterials() bool
}

// LaborOnly producers are limited by labor alone.
type LaborOnly struct{}

func (LaborOnly) Capacity(p Params, workers, equipment, _ int) int {
	return p.LaborCapacity(p.TotalLabor(workers, equipment))
}

func (LaborOnly) UsesMaterials() bool { return false }

// MaterialBound producers are limited by labor and by material stock.
type MaterialBound struct{}

func (MaterialBound) Capacity(p Params, workers, equipment, materials int) int {
	return min(p.LaborCapacity(p.TotalLabor(workers, equipment)), p.MaterialCapacity(materials))
}

func (MaterialBound) UsesMaterials() bool { return true }

// Labor is the firm's current productive labor.
func (f *Firm) Labor() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params.TotalLabor(len(f.workers), f.state.Equipment)
}

// LaborForEquipment is the labor the current roster would produce with
// equipment units instead of the ones actually owned.
func (f *Firm) LaborForEquipment(equipment int) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params.TotalLabor(len(f.workers), equipment)
}

// ProductionCapacity is how many goods the firm can make right now.
func (f *Firm) ProductionCapacity() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.capacity()
}

// capacity requires f.mu.
func (f *Firm) capacity() int {
	return f.tech.Capacity(f.params, len(f.workers), f.state.Equipment, f.state.Materials)
}
