package directory

import "github.com/perfusionpro/perfusion-api/registry/entities"

// SeedHospitals returns the built-in fallback list used when the
// external dataset cannot be loaded. One well-known facility per New
// England region, so pickers stay usable while the error state is shown.
func SeedHospitals() []entities.Hospital {
	seed := []entities.Hospital{
		{
			ProviderNumber:    "H1",
			Name:              "Dartmouth-Hitchcock Medical Center",
			Address:           "1 Medical Center Drive",
			City:              "Lebanon",
			State:             "NH",
			ZipCode:           "03756",
			Phone:             "(603) 650-5000",
			FacilityType:      "Acute Care Hospitals",
			EmergencyServices: "Yes",
		},
		{
			ProviderNumber:    "H2",
			Name:              "Hartford Hospital",
			Address:           "80 Seymour Street",
			City:              "Hartford",
			State:             "CT",
			ZipCode:           "06102",
			Phone:             "(860) 545-5000",
			FacilityType:      "Acute Care Hospitals",
			EmergencyServices: "Yes",
		},
		{
			ProviderNumber:    "H3",
			Name:              "Maine Medical Center",
			Address:           "22 Bramhall Street",
			City:              "Portland",
			State:             "ME",
			ZipCode:           "04102",
			Phone:             "(207) 662-0111",
			FacilityType:      "Acute Care Hospitals",
			EmergencyServices: "Yes",
		},
		{
			ProviderNumber:    "H4",
			Name:              "Massachusetts General Hospital",
			Address:           "55 Fruit Street",
			City:              "Boston",
			State:             "MA",
			ZipCode:           "02114",
			Phone:             "(617) 726-2000",
			FacilityType:      "Acute Care Hospitals",
			EmergencyServices: "Yes",
		},
		{
			ProviderNumber:    "H5",
			Name:              "Rhode Island Hospital",
			Address:           "593 Eddy Street",
			City:              "Providence",
			State:             "RI",
			ZipCode:           "02903",
			Phone:             "(401) 444-4000",
			FacilityType:      "Acute Care Hospitals",
			EmergencyServices: "Yes",
		},
		{
			ProviderNumber:    "H6",
			Name:              "University of Vermont Medical Center",
			Address:           "111 Colchester Avenue",
			City:              "Burlington",
			State:             "VT",
			ZipCode:           "05401",
			Phone:             "(802) 847-0000",
			FacilityType:      "Acute Care Hospitals",
			EmergencyServices: "Yes",
		},
	}

	for i := range seed {
		seed[i].Searchable = seed[i].BuildSearchable()
	}
	return seed
}
