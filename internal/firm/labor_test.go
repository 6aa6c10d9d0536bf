package firm

import "testing"

func TestTotalLaborMonotone(t *testing.T) {
	p := Params{LaborCostPerGood: 1, LaborPerWorker: 2, LaborPerEquipment: 3}
	for w := 0; w < 15; w++ {
		for e := 0; e < 15; e++ {
			here := p.TotalLabor(w, e)
			if p.TotalLabor(w+1, e) < here {
				t.Fatalf("expected labor non-decreasing in workers at w=%d e=%d", w, e)
			}
			if p.TotalLabor(w, e+1) < here {
				t.Fatalf("expected labor non-decreasing in equipment at w=%d e=%d", w, e)
			}
		}
	}
}

func TestEquipmentNeedsOperators(t *testing.T) {
	p := Params{LaborCostPerGood: 1, LaborPerWorker: 1, LaborPerEquipment: 5}
	if got := p.EquipmentLabor(2, 10); got != 10 {
		t.Fatalf("expected only 2 operated units (10 labor), got %v", got)
	}
	if got := p.EquipmentLabor(0, 10); got != 0 {
		t.Fatalf("expected idle equipment without workers, got %v", got)
	}
	if a, b := p.TotalLabor(3, 3), p.TotalLabor(3, 9); a != b {
		t.Fatalf("expected surplus equipment to add nothing: %v vs %v", a, b)
	}
}

func TestMaterialBoundCapacityNeverExceedsEitherLimit(t *testing.T) {
	p := Params{LaborCostPerGood: 2, MaterialCostPerGood: 3, LaborPerWorker: 1, LaborPerEquipment: 2}
	var tech MaterialBound
	for w := 0; w < 10; w++ {
		for e := 0; e < 10; e++ {
			for m := 0; m < 40; m += 3 {
				got := tech.Capacity(p, w, e, m)
				laborCap := p.LaborCapacity(p.TotalLabor(w, e))
				matCap := p.MaterialCapacity(m)
				if got > laborCap || got > matCap {
					t.Fatalf("capacity %d exceeds limits labor=%d materials=%d (w=%d e=%d m=%d)", got, laborCap, matCap, w, e, m)
				}
				if got != min(laborCap, matCap) {
					t.Fatalf("expected capacity to be the tighter limit, got %d", got)
				}
			}
		}
	}
}

func TestLaborOnlyIgnoresMaterials(t *testing.T) {
	p := Params{LaborCostPerGood: 2, LaborPerWorker: 3}
	var tech LaborOnly
	if got := tech.Capacity(p, 3, 0, 0); got != 4 {
		t.Fatalf("expected floor(9/2)=4, got %d", got)
	}
	if tech.UsesMaterials() {
		t.Fatalf("expected labor-only technology to skip materials")
	}
}

func TestLaborForEquipmentUsesHypotheticalCount(t *testing.T) {
	f := newTestFirm("f", KindConsumerGood, Params{
		LaborCostPerGood: 1, MaterialCostPerGood: 1, LaborPerWorker: 1, LaborPerEquipment: 4,
	}, WithState(State{WorkerChange: 3, DesiredSupply: 1}))
	if _, _, _, err := f.Hire(testContext(t), workers(3, "w"), 10); err != nil {
		t.Fatalf("hire: %v", err)
	}
	if got := f.Labor(); got != 3 {
		t.Fatalf("expected 3 labor without equipment, got %v", got)
	}
	if got := f.LaborForEquipment(2); got != 11 {
		t.Fatalf("expected 3 + 2*4 = 11 labor, got %v", got)
	}
}
